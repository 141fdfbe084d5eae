package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"site_registry/internal/config"
	"site_registry/internal/domain"
	"site_registry/pkg/logger"

	influxdb3 "github.com/InfluxCommunity/influxdb3-go/v2/influxdb3"
)

const statusMeasurement = "site_status"

// InfluxEventRepo implements EventRepository for InfluxDB
type InfluxEventRepo struct {
	db *config.InfluxDatabase
}

// NewInfluxEventRepo creates a new InfluxDB event repository
func NewInfluxEventRepo(db *config.InfluxDatabase) *InfluxEventRepo {
	return &InfluxEventRepo{db: db}
}

// Insert writes status events as points
func (r *InfluxEventRepo) Insert(ctx context.Context, events []domain.StatusEvent) error {
	if r.db == nil || r.db.Client == nil {
		return fmt.Errorf("InfluxDB client is nil - database not initialized")
	}

	if len(events) == 0 {
		return nil
	}

	points := make([]*influxdb3.Point, 0, len(events))
	for _, e := range events {
		points = append(points, eventToPoint(e))
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := r.db.Client.WritePoints(ctx, points); err != nil {
		return fmt.Errorf("WritePoints failed: %w (points: %d, db: %s)",
			err, len(points), r.db.Database)
	}

	logger.Debugf("Wrote %d status events", len(points))
	return nil
}

// eventToPoint converts a status event to an InfluxDB point
func eventToPoint(e domain.StatusEvent) *influxdb3.Point {
	tags := map[string]string{
		"site_id":     strconv.Itoa(e.SiteID),
		"from_status": string(e.From),
		"to_status":   string(e.To),
	}

	fields := map[string]interface{}{
		"actor":  e.Actor,
		"change": int64(1),
	}

	return influxdb3.NewPoint(statusMeasurement, tags, fields, e.At)
}

// History returns the latest events of a site
func (r *InfluxEventRepo) History(ctx context.Context, siteID int, limit int) ([]domain.StatusEvent, error) {
	if r.db == nil || r.db.Client == nil {
		return nil, fmt.Errorf("InfluxDB client is nil - database not initialized")
	}

	query := fmt.Sprintf(
		"SELECT time, site_id, from_status, to_status, actor FROM %s WHERE site_id = '%d' ORDER BY time DESC",
		statusMeasurement, siteID)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	logger.Debugf("Executing query: %s", query)

	iterator, err := r.db.Client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w (query: %s)", err, query)
	}

	results := make([]domain.StatusEvent, 0)
	for iterator.Next() {
		results = append(results, rowToEvent(iterator.Value()))
	}

	return results, nil
}

// rowToEvent converts an InfluxDB result row to a status event
func rowToEvent(value map[string]interface{}) domain.StatusEvent {
	e := domain.StatusEvent{
		From:  domain.Status(getStringValue(value, "from_status")),
		To:    domain.Status(getStringValue(value, "to_status")),
		Actor: getStringValue(value, "actor"),
	}
	if id, err := strconv.Atoi(getStringValue(value, "site_id")); err == nil {
		e.SiteID = id
	}
	if ts, ok := value["time"].(time.Time); ok {
		e.At = ts.UTC()
	}
	return e
}

// Type returns database type
func (r *InfluxEventRepo) Type() string {
	return "influx"
}

func getStringValue(data map[string]interface{}, key string) string {
	if val, ok := data[key].(string); ok {
		return val
	}
	return ""
}
