package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mini-ttc/etaboard/internal/models"
)

// lineRouteRe matches route IDs that are plain TTC line numbers
var lineRouteRe = regexp.MustCompile(`^\d+$`)

// SQLiteAlertRepository reads service alerts written by the poller
type SQLiteAlertRepository struct {
	db *sql.DB
}

// NewSQLiteAlertRepository creates a new SQLiteAlertRepository
func NewSQLiteAlertRepository(db *sql.DB) *SQLiteAlertRepository {
	return &SQLiteAlertRepository{db: db}
}

// GetActiveAlerts returns active alerts, limited to the given lines when any
// are passed
func (r *SQLiteAlertRepository) GetActiveAlerts(ctx context.Context, lines []int) ([]models.ServiceAlert, error) {
	query := `
		SELECT a.alert_id, a.cause, a.effect, a.header_text, a.description_text, a.url,
			a.is_active, a.first_seen_at, a.active_period_start, a.active_period_end, a.resolved_at
		FROM rt_alerts a
		WHERE a.is_active = 1
		ORDER BY a.first_seen_at DESC
	`
	var args []interface{}
	if len(lines) > 0 {
		placeholders := make([]string, len(lines))
		for i, l := range lines {
			placeholders[i] = "?"
			args = append(args, strconv.Itoa(l))
		}
		query = fmt.Sprintf(`
			SELECT DISTINCT a.alert_id, a.cause, a.effect, a.header_text, a.description_text, a.url,
				a.is_active, a.first_seen_at, a.active_period_start, a.active_period_end, a.resolved_at
			FROM rt_alerts a
			JOIN rt_alert_entities e ON e.alert_id = a.alert_id
			WHERE a.is_active = 1 AND e.route_id IN (%s)
			ORDER BY a.first_seen_at DESC
		`, strings.Join(placeholders, ","))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.ServiceAlert{}
	for rows.Next() {
		var a models.ServiceAlert
		var cause, effect, header, desc, url sql.NullString
		var isActive int

		if err := rows.Scan(
			&a.AlertID, &cause, &effect, &header, &desc, &url,
			&isActive, &a.FirstSeenAt, &a.ActivePeriodStart, &a.ActivePeriodEnd, &a.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Cause, a.Effect = cause.String, effect.String
		a.HeaderText, a.DescriptionText, a.URL = header.String, desc.String, url.String
		a.IsActive = isActive == 1
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range alerts {
		affected, err := r.affectedLines(ctx, alerts[i].AlertID)
		if err != nil {
			return nil, err
		}
		alerts[i].AffectedLines = affected
	}

	return alerts, nil
}

func (r *SQLiteAlertRepository) affectedLines(ctx context.Context, alertID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT route_id FROM rt_alert_entities WHERE alert_id = ? AND route_id != '' ORDER BY route_id`,
		alertID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert entities: %w", err)
	}
	defer rows.Close()

	return collectLines(func() (string, bool, error) {
		if !rows.Next() {
			return "", false, rows.Err()
		}
		var rid string
		err := rows.Scan(&rid)
		return rid, true, err
	})
}

// collectLines keeps the route IDs that are line numbers, in numeric order
func collectLines(next func() (string, bool, error)) ([]string, error) {
	lines := []string{}
	for {
		rid, ok, err := next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if lineRouteRe.MatchString(rid) {
			lines = append(lines, rid)
		}
	}
	sortNumeric(lines)
	return lines, nil
}

func sortNumeric(lines []string) {
	sort.Slice(lines, func(i, j int) bool {
		a, _ := strconv.Atoi(lines[i])
		b, _ := strconv.Atoi(lines[j])
		return a < b
	})
}
