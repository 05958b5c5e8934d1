package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/activity-feed/internal/models"
	"github.com/smartdevs17/activity-feed/pkg/utils"
)

// dialect captures what differs between the SQL backends
type dialect struct {
	name       string
	driver     string
	bindType   int
	migrations []*Migration
	snapshot   *sql.TxOptions
	// appendLock serializes appends of one team until commit. Empty when the
	// engine's own single writer lock already does that.
	appendLock string
	// greatest is the two-argument maximum function
	greatest   string
}

// sqlStore implements Storage on top of sqlx for both backends
type sqlStore struct {
	db      *sqlx.DB
	config  *StorageConfig
	dialect dialect
	now     func() time.Time
	logger  *logrus.Entry
}

func newSQLStore(config *StorageConfig, d dialect) *sqlStore {
	return &sqlStore{
		config:  config,
		dialect: d,
		now:     time.Now,
		logger:  utils.ComponentLogger("storage").WithField("backend", d.name),
	}
}

type activityRow struct {
	ID        int64          `db:"id"`
	TeamID    int64          `db:"team_id"`
	Scope     string         `db:"scope"`
	EntityID  string         `db:"entity_id"`
	AuthorID  string         `db:"author_id"`
	Activity  string         `db:"activity"`
	Detail    sql.NullString `db:"detail"`
	CreatedAt int64          `db:"created_at"`
}

func (r *activityRow) toModel() *models.ActivityEntry {
	entry := &models.ActivityEntry{
		ID:        r.ID,
		TeamID:    r.TeamID,
		Scope:     models.Scope(r.Scope),
		EntityID:  r.EntityID,
		AuthorID:  r.AuthorID,
		Activity:  r.Activity,
		CreatedAt: fromMicros(r.CreatedAt),
	}
	if r.Detail.Valid {
		entry.Detail = json.RawMessage(r.Detail.String)
	}
	return entry
}

type watermarkRow struct {
	TeamID    int64  `db:"team_id"`
	UserID    string `db:"user_id"`
	LastRead  int64  `db:"last_read"`
	Version   int64  `db:"version"`
	UpdatedAt int64  `db:"updated_at"`
}

func (r *watermarkRow) toModel() *models.Watermark {
	return &models.Watermark{
		TeamID:    r.TeamID,
		UserID:    r.UserID,
		LastRead:  fromMicros(r.LastRead),
		Version:   r.Version,
		UpdatedAt: fromMicros(r.UpdatedAt),
	}
}

type interestRow struct {
	Scope    string `db:"scope"`
	EntityID string `db:"entity_id"`
}

func (s *sqlStore) rebind(query string) string {
	return sqlx.Rebind(s.dialect.bindType, query)
}

func (s *sqlStore) open(dsn string) error {
	db, err := sqlx.Open(s.dialect.driver, dsn)
	if err != nil {
		return utils.WrapAppError(utils.ErrCodeDatabase, "Failed to open "+s.dialect.name+" database", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.config.MaxConnections)
	db.SetMaxIdleConns(max(s.config.MaxConnections/2, 1))
	db.SetConnMaxIdleTime(s.config.MaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return utils.WrapAppError(utils.ErrCodeStorageUnavailable, "Failed to ping "+s.dialect.name+" database", err)
	}

	s.db = db
	s.logger.Info("Database connected")
	return nil
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		s.logger.Info("Database connection closed")
		return err
	}
	return nil
}

// Ping checks database connectivity
func (s *sqlStore) Ping() error {
	if s.db == nil {
		return errNotConnected
	}
	return classifyError("ping", s.db.Ping())
}

// Migrate brings the schema up to date
func (s *sqlStore) Migrate() error {
	if s.db == nil {
		return errNotConnected
	}

	s.logger.Info("Starting database migrations")
	if err := s.applyMigrations(context.Background()); err != nil {
		return err
	}
	s.logger.Info("Database migrations completed")
	return nil
}

// AppendActivity validates entry and stores it with its interest edge
func (s *sqlStore) AppendActivity(ctx context.Context, entry *models.ActivityEntry) error {
	if result := ValidateActivityEntry(entry); !result.Valid {
		return result.Err("Activity entry validation failed")
	}
	if s.db == nil {
		return errNotConnected
	}

	var detail sql.NullString
	if len(entry.Detail) > 0 {
		detail = sql.NullString{String: string(entry.Detail), Valid: true}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classifyError("begin append", err)
	}
	defer tx.Rollback()

	if s.dialect.appendLock != "" {
		if _, err := tx.ExecContext(ctx, s.rebind(s.dialect.appendLock), entry.TeamID); err != nil {
			return classifyError("lock team log", err)
		}
	}

	// created_at is taken under the write lock, so it follows commit order
	// whatever the clock of the appending process says.
	insert := s.rebind(`
		INSERT INTO activity_log (team_id, scope, entity_id, author_id, activity, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ` + s.dialect.greatest + `(CAST(? AS BIGINT),
			COALESCE((SELECT MAX(created_at) FROM activity_log WHERE team_id = ?), 0) + 1))
		RETURNING id, created_at
	`)
	var (
		id        int64
		createdAt int64
	)
	if err := tx.QueryRowxContext(ctx, insert,
		entry.TeamID, string(entry.Scope), entry.EntityID, entry.AuthorID,
		entry.Activity, detail, toMicros(s.now()), entry.TeamID).Scan(&id, &createdAt); err != nil {
		return classifyError("append activity", err)
	}

	interest := s.rebind(`
		INSERT INTO activity_interests (team_id, user_id, scope, entity_id, first_seen_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (team_id, user_id, scope, entity_id) DO NOTHING
	`)
	if _, err := tx.ExecContext(ctx, interest,
		entry.TeamID, entry.AuthorID, string(entry.Scope), entry.EntityID, createdAt); err != nil {
		return classifyError("record interest", err)
	}

	if err := commitAppend(tx); err != nil {
		return err
	}
	entry.ID = id
	entry.CreatedAt = fromMicros(createdAt)
	return nil
}

// commitAppend commits an append. A failed commit may still have reached the
// server, so it is never reported as retryable.
func commitAppend(tx driver.Tx) error {
	if err := tx.Commit(); err != nil {
		return utils.WrapAppError(utils.ErrCodeDatabase, "Activity entry commit failed, outcome unknown", err)
	}
	return nil
}

// QueryActivity returns entries matching filter
func (s *sqlStore) QueryActivity(ctx context.Context, filter models.ActivityFilter) ([]*models.ActivityEntry, error) {
	if s.db == nil {
		return nil, errNotConnected
	}
	return s.queryActivity(ctx, s.db, filter)
}

// CountActivity counts entries matching filter, ignoring its limit
func (s *sqlStore) CountActivity(ctx context.Context, filter models.ActivityFilter) (int64, error) {
	if s.db == nil {
		return 0, errNotConnected
	}
	return s.countActivity(ctx, s.db, filter)
}

// ListInterests returns the user's interest set from the index
func (s *sqlStore) ListInterests(ctx context.Context, teamID int64, userID string) ([]models.EntityRef, error) {
	if s.db == nil {
		return nil, errNotConnected
	}
	return s.listInterests(ctx, s.db, teamID, userID)
}

// GetWatermark returns the user's watermark or nil
func (s *sqlStore) GetWatermark(ctx context.Context, teamID int64, userID string) (*models.Watermark, error) {
	if s.db == nil {
		return nil, errNotConnected
	}
	return s.getWatermark(ctx, s.db, teamID, userID)
}

// ReadSnapshot runs fn inside a read transaction. Under SQLite WAL the first
// read pins the snapshot; PostgreSQL uses REPEATABLE READ.
func (s *sqlStore) ReadSnapshot(ctx context.Context, fn func(ActivityReader) error) error {
	if s.db == nil {
		return errNotConnected
	}
	tx, err := s.db.BeginTxx(ctx, s.dialect.snapshot)
	if err != nil {
		return classifyError("begin read snapshot", err)
	}
	defer tx.Rollback()

	if err := fn(&snapshotReader{store: s, tx: tx}); err != nil {
		return err
	}
	return classifyError("end read snapshot", tx.Commit())
}

// AdvanceWatermark performs a forward-only compare-and-swap on the version
// column. No transaction is held between the read and the conditional write.
func (s *sqlStore) AdvanceWatermark(ctx context.Context, teamID int64, userID string, ts time.Time) (bool, error) {
	if result := ValidateBookmark(teamID, userID, ts); !result.Valid {
		return false, result.Err("Bookmark validation failed")
	}
	if s.db == nil {
		return false, errNotConnected
	}

	target := toMicros(ts)
	current, err := s.getWatermark(ctx, s.db, teamID, userID)
	if err != nil {
		return false, err
	}

	now := toMicros(time.Now())
	if current == nil {
		if target <= 0 {
			return false, nil
		}
		insert := s.rebind(`
			INSERT INTO activity_watermarks (team_id, user_id, last_read, version, updated_at)
			VALUES (?, ?, ?, 1, ?)
			ON CONFLICT (team_id, user_id) DO NOTHING
		`)
		res, err := s.db.ExecContext(ctx, insert, teamID, userID, target, now)
		if err != nil {
			return false, classifyError("create watermark", err)
		}
		return s.checkSwapped(res, teamID, userID)
	}

	if target <= toMicros(current.LastRead) {
		return false, nil
	}
	update := s.rebind(`
		UPDATE activity_watermarks
		SET last_read = ?, version = version + 1, updated_at = ?
		WHERE team_id = ? AND user_id = ? AND version = ?
	`)
	res, err := s.db.ExecContext(ctx, update, target, now, teamID, userID, current.Version)
	if err != nil {
		return false, classifyError("advance watermark", err)
	}
	return s.checkSwapped(res, teamID, userID)
}

func (s *sqlStore) checkSwapped(res sql.Result, teamID int64, userID string) (bool, error) {
	rows, err := res.RowsAffected()
	if err != nil {
		return false, classifyError("advance watermark", err)
	}
	if rows == 0 {
		s.logger.WithFields(logrus.Fields{"team_id": teamID, "user_id": userID}).Debug("Watermark changed concurrently")
		return false, utils.NewAppError(utils.ErrCodeConcurrency, "Watermark was modified concurrently")
	}
	return true, nil
}

// PutTombstone marks an entity as deleted. Repeated deletes keep the first time.
func (s *sqlStore) PutTombstone(ctx context.Context, tombstone *models.Tombstone) error {
	if result := ValidateTombstone(tombstone); !result.Valid {
		return result.Err("Tombstone validation failed")
	}
	if s.db == nil {
		return errNotConnected
	}
	if tombstone.DeletedAt.IsZero() {
		tombstone.DeletedAt = s.now().UTC().Truncate(time.Microsecond)
	}

	insert := s.rebind(`
		INSERT INTO activity_tombstones (team_id, scope, entity_id, deleted_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (team_id, scope, entity_id) DO NOTHING
	`)
	_, err := s.db.ExecContext(ctx, insert,
		tombstone.TeamID, string(tombstone.Scope), tombstone.EntityID, toMicros(tombstone.DeletedAt))
	return classifyError("put tombstone", err)
}

// GetStats returns table counts and the time range of the log
func (s *sqlStore) GetStats(ctx context.Context) (*StorageStats, error) {
	if s.db == nil {
		return nil, errNotConnected
	}
	stats := &StorageStats{Backend: s.dialect.name}

	counts := []struct {
		table string
		dest  *int64
	}{
		{"activity_log", &stats.TotalEntries},
		{"activity_interests", &stats.TotalInterests},
		{"activity_watermarks", &stats.TotalWatermarks},
		{"activity_tombstones", &stats.TotalTombstones},
	}
	for _, c := range counts {
		if err := s.db.GetContext(ctx, c.dest, "SELECT COUNT(*) FROM "+c.table); err != nil {
			return nil, classifyError("count "+c.table, err)
		}
	}

	var bounds struct {
		Oldest sql.NullInt64 `db:"oldest"`
		Latest sql.NullInt64 `db:"latest"`
	}
	if err := s.db.GetContext(ctx, &bounds,
		`SELECT MIN(created_at) AS oldest, MAX(created_at) AS latest FROM activity_log`); err != nil {
		return nil, classifyError("read activity range", err)
	}
	if bounds.Oldest.Valid {
		oldest := fromMicros(bounds.Oldest.Int64)
		stats.OldestEntry = &oldest
	}
	if bounds.Latest.Valid {
		latest := fromMicros(bounds.Latest.Int64)
		stats.LatestEntry = &latest
	}

	version, err := s.schemaVersion(ctx, s.db)
	if err != nil {
		return nil, err
	}
	stats.SchemaVersion = version
	return stats, nil
}

// GetHealth pings the database and reports the latency
func (s *sqlStore) GetHealth(ctx context.Context) *StorageHealth {
	health := &StorageHealth{Backend: s.dialect.name, CheckedAt: time.Now()}
	start := time.Now()

	var err error
	if s.db == nil {
		err = errNotConnected
	} else {
		err = s.db.PingContext(ctx)
	}
	health.Latency = time.Since(start)
	if err != nil {
		health.Error = err.Error()
		return health
	}
	health.Healthy = true
	return health
}

func (s *sqlStore) queryActivity(ctx context.Context, q sqlx.QueryerContext, filter models.ActivityFilter) ([]*models.ActivityEntry, error) {
	where, args, none := buildActivityWhere(filter)
	if none {
		return []*models.ActivityEntry{}, nil
	}

	order := "DESC"
	if filter.Ascending {
		order = "ASC"
	}
	query := `
		SELECT a.id, a.team_id, a.scope, a.entity_id, a.author_id, a.activity, a.detail, a.created_at
		FROM activity_log a
		WHERE ` + where + `
		ORDER BY a.created_at ` + order + `, a.id ` + order
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var rows []activityRow
	if err := sqlx.SelectContext(ctx, q, &rows, s.rebind(query), args...); err != nil {
		return nil, classifyError("query activity", err)
	}

	entries := make([]*models.ActivityEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].toModel())
	}
	return entries, nil
}

func (s *sqlStore) countActivity(ctx context.Context, q sqlx.QueryerContext, filter models.ActivityFilter) (int64, error) {
	where, args, none := buildActivityWhere(filter)
	if none {
		return 0, nil
	}
	var count int64
	query := `SELECT COUNT(*) FROM activity_log a WHERE ` + where
	if err := sqlx.GetContext(ctx, q, &count, s.rebind(query), args...); err != nil {
		return 0, classifyError("count activity", err)
	}
	return count, nil
}

func (s *sqlStore) listInterests(ctx context.Context, q sqlx.QueryerContext, teamID int64, userID string) ([]models.EntityRef, error) {
	query := s.rebind(`
		SELECT scope, entity_id FROM activity_interests
		WHERE team_id = ? AND user_id = ?
		ORDER BY scope, entity_id
	`)
	var rows []interestRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, teamID, userID); err != nil {
		return nil, classifyError("list interests", err)
	}
	refs := make([]models.EntityRef, 0, len(rows))
	for _, r := range rows {
		refs = append(refs, models.EntityRef{Scope: models.Scope(r.Scope), EntityID: r.EntityID})
	}
	return refs, nil
}

func (s *sqlStore) getWatermark(ctx context.Context, q sqlx.QueryerContext, teamID int64, userID string) (*models.Watermark, error) {
	query := s.rebind(`
		SELECT team_id, user_id, last_read, version, updated_at
		FROM activity_watermarks
		WHERE team_id = ? AND user_id = ?
	`)
	var row watermarkRow
	if err := sqlx.GetContext(ctx, q, &row, query, teamID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, classifyError("get watermark", err)
	}
	return row.toModel(), nil
}

// buildActivityWhere renders filter as a WHERE clause over activity_log
// aliased "a". none is true when the filter can match nothing.
func buildActivityWhere(filter models.ActivityFilter) (where string, args []interface{}, none bool) {
	conds := []string{"a.team_id = ?"}
	args = []interface{}{filter.TeamID}

	if filter.Entities != nil {
		if len(filter.Entities) == 0 {
			return "", nil, true
		}
		parts := make([]string, 0, len(filter.Entities))
		for _, ref := range filter.Entities {
			parts = append(parts, "(a.scope = ? AND a.entity_id = ?)")
			args = append(args, string(ref.Scope), ref.EntityID)
		}
		conds = append(conds, "("+strings.Join(parts, " OR ")+")")
	}
	if filter.InterestedUser != nil {
		conds = append(conds, `EXISTS (
			SELECT 1 FROM activity_interests i
			WHERE i.team_id = a.team_id AND i.user_id = ?
			AND i.scope = a.scope AND i.entity_id = a.entity_id)`)
		args = append(args, *filter.InterestedUser)
	}
	if filter.Author != nil {
		conds = append(conds, "a.author_id = ?")
		args = append(args, *filter.Author)
	}
	if filter.ExcludeAuthor != nil {
		conds = append(conds, "a.author_id <> ?")
		args = append(args, *filter.ExcludeAuthor)
	}
	if filter.After != nil {
		conds = append(conds, "a.created_at > ?")
		args = append(args, toMicros(*filter.After))
	}
	if filter.ExcludeTombstoned {
		conds = append(conds, `NOT EXISTS (
			SELECT 1 FROM activity_tombstones t
			WHERE t.team_id = a.team_id AND t.scope = a.scope AND t.entity_id = a.entity_id)`)
	}

	return strings.Join(conds, " AND "), args, false
}

// snapshotReader serves reads from one transaction
type snapshotReader struct {
	store *sqlStore
	tx    *sqlx.Tx
}

func (r *snapshotReader) QueryActivity(ctx context.Context, filter models.ActivityFilter) ([]*models.ActivityEntry, error) {
	return r.store.queryActivity(ctx, r.tx, filter)
}

func (r *snapshotReader) CountActivity(ctx context.Context, filter models.ActivityFilter) (int64, error) {
	return r.store.countActivity(ctx, r.tx, filter)
}

func (r *snapshotReader) ListInterests(ctx context.Context, teamID int64, userID string) ([]models.EntityRef, error) {
	return r.store.listInterests(ctx, r.tx, teamID, userID)
}

func (r *snapshotReader) GetWatermark(ctx context.Context, teamID int64, userID string) (*models.Watermark, error) {
	return r.store.getWatermark(ctx, r.tx, teamID, userID)
}

func toMicros(t time.Time) int64 {
	return t.UnixMicro()
}

func fromMicros(micros int64) time.Time {
	return time.UnixMicro(micros).UTC()
}
