package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	domainerrors "solmine/contexts/mining-core/session-service/domain/errors"
	"solmine/contexts/mining-core/session-service/domain/entities"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	slotCurrent  = "current"
	slotPrevious = "previous"

	historyCap = 100
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates the session, miner and history tables.
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&sessionSlotModel{},
		&minerEntryModel{},
		&distributionRecordModel{},
	)
}

func (r *Repository) CurrentSession(ctx context.Context) (entities.Session, bool, error) {
	return r.sessionInSlot(ctx, slotCurrent)
}

func (r *Repository) PreviousSession(ctx context.Context) (entities.Session, bool, error) {
	return r.sessionInSlot(ctx, slotPrevious)
}

func (r *Repository) sessionInSlot(ctx context.Context, slot string) (entities.Session, bool, error) {
	var row sessionSlotModel
	err := r.db.WithContext(ctx).Where("slot = ?", slot).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.Session{}, false, nil
	}
	if err != nil {
		return entities.Session{}, false, r.logError("session_repo_read_slot_failed", err, "slot", slot)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) InstallSession(ctx context.Context, session entities.Session) error {
	row := sessionSlotModelFromEntity(slotCurrent, session)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slot"}},
			UpdateAll: true,
		}).
		Create(&row).Error
	if err != nil {
		return r.logError("session_repo_install_failed", err, "session_id", session.ID)
	}
	return nil
}

func (r *Repository) RotateSessions(ctx context.Context, next entities.Session) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current sessionSlotModel
		if err := tx.Where("slot = ?", slotCurrent).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrNoSession
			}
			return err
		}

		// A stale previous session gives up its slot and its miner rows.
		var previous sessionSlotModel
		err := tx.Where("slot = ?", slotPrevious).First(&previous).Error
		switch {
		case err == nil:
			if err := tx.Where("session_id = ?", previous.SessionID).Delete(&minerEntryModel{}).Error; err != nil {
				return err
			}
			if err := tx.Where("slot = ?", slotPrevious).Delete(&sessionSlotModel{}).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		closed := current
		closed.Slot = slotPrevious
		if err := tx.Where("slot = ?", slotCurrent).Delete(&sessionSlotModel{}).Error; err != nil {
			return err
		}
		if err := tx.Create(&closed).Error; err != nil {
			return err
		}

		installed := sessionSlotModelFromEntity(slotCurrent, next)
		return tx.Create(&installed).Error
	})
}

func (r *Repository) MarkDistributed(ctx context.Context, sessionID string) error {
	result := r.db.WithContext(ctx).
		Model(&sessionSlotModel{}).
		Where("session_id = ?", sessionID).
		Update("distributed", true)
	if result.Error != nil {
		return r.logError("session_repo_mark_distributed_failed", result.Error, "session_id", sessionID)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrSessionUnknown
	}
	return nil
}

func (r *Repository) EnsureMiner(ctx context.Context, sessionID string, wallet string, joinedAt time.Time) error {
	row := minerEntryModel{
		SessionID: sessionID,
		Wallet:    wallet,
		Points:    0,
		JoinedAt:  joinedAt,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil && !isUniqueViolation(err) {
		return r.logError("session_repo_ensure_miner_failed", err,
			"session_id", sessionID,
			"wallet", wallet,
		)
	}
	return nil
}

func (r *Repository) AddPoints(ctx context.Context, sessionID string, wallet string, points int64, joinedAt time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row minerEntryModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("session_id = ? AND wallet = ?", sessionID, wallet).
			First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = minerEntryModel{
				SessionID: sessionID,
				Wallet:    wallet,
				Points:    points,
				JoinedAt:  joinedAt,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			row.Points += points
			if err := tx.Model(&minerEntryModel{}).
				Where("session_id = ? AND wallet = ?", sessionID, wallet).
				Update("points", row.Points).Error; err != nil {
				return err
			}
		}
		total = row.Points
		return nil
	})
	if err != nil {
		return 0, r.logError("session_repo_add_points_failed", err,
			"session_id", sessionID,
			"wallet", wallet,
		)
	}
	return total, nil
}

func (r *Repository) ListMiners(ctx context.Context, sessionID string) ([]entities.MinerEntry, error) {
	var rows []minerEntryModel
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Find(&rows).Error
	if err != nil {
		return nil, r.logError("session_repo_list_miners_failed", err, "session_id", sessionID)
	}
	entries := make([]entities.MinerEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toEntity())
	}
	return entries, nil
}

func (r *Repository) AppendDistributions(ctx context.Context, records []entities.DistributionRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]distributionRecordModel, 0, len(records))
	for _, record := range records {
		rows = append(rows, distributionRecordModelFromEntity(record))
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		keep := tx.Model(&distributionRecordModel{}).
			Select("id").
			Order("timestamp desc, id desc").
			Limit(historyCap)
		return tx.Where("id NOT IN (?)", keep).Delete(&distributionRecordModel{}).Error
	})
}

func (r *Repository) ListDistributions(ctx context.Context, limit int) ([]entities.DistributionRecord, error) {
	if limit <= 0 || limit > historyCap {
		limit = historyCap
	}
	var rows []distributionRecordModel
	err := r.db.WithContext(ctx).
		Order("timestamp desc, id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, r.logError("session_repo_list_distributions_failed", err)
	}
	records := make([]entities.DistributionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toEntity())
	}
	return records, nil
}

func (r *Repository) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "mining-core/session-service",
		"layer", "adapter",
		"error", err.Error(),
	}, args...)
	r.logger.Error("session repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type sessionSlotModel struct {
	Slot        string    `gorm:"column:slot;primaryKey"`
	SessionID   string    `gorm:"column:session_id;index"`
	StartTime   time.Time `gorm:"column:start_time"`
	EndTime     time.Time `gorm:"column:end_time"`
	Distributed bool      `gorm:"column:distributed"`
}

func (sessionSlotModel) TableName() string {
	return "mining_session_slots"
}

func sessionSlotModelFromEntity(slot string, session entities.Session) sessionSlotModel {
	return sessionSlotModel{
		Slot:        slot,
		SessionID:   session.ID,
		StartTime:   session.StartTime,
		EndTime:     session.EndTime,
		Distributed: session.Distributed,
	}
}

func (m sessionSlotModel) toEntity() entities.Session {
	return entities.Session{
		ID:          m.SessionID,
		StartTime:   m.StartTime,
		EndTime:     m.EndTime,
		Distributed: m.Distributed,
	}
}

type minerEntryModel struct {
	SessionID string    `gorm:"column:session_id;primaryKey"`
	Wallet    string    `gorm:"column:wallet;primaryKey"`
	Points    int64     `gorm:"column:points"`
	JoinedAt  time.Time `gorm:"column:joined_at"`
}

func (minerEntryModel) TableName() string {
	return "miner_entries"
}

func (m minerEntryModel) toEntity() entities.MinerEntry {
	return entities.MinerEntry{
		Wallet:   m.Wallet,
		Points:   m.Points,
		JoinedAt: m.JoinedAt,
	}
}

type distributionRecordModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	SessionID string    `gorm:"column:session_id;index"`
	Wallet    string    `gorm:"column:wallet"`
	Lamports  uint64    `gorm:"column:lamports"`
	Signature string    `gorm:"column:signature"`
	Error     string    `gorm:"column:error"`
	Success   bool      `gorm:"column:success"`
	Timestamp time.Time `gorm:"column:timestamp;index"`
}

func (distributionRecordModel) TableName() string {
	return "pool_distributions"
}

func distributionRecordModelFromEntity(record entities.DistributionRecord) distributionRecordModel {
	return distributionRecordModel{
		ID:        record.ID,
		SessionID: record.SessionID,
		Wallet:    record.Wallet,
		Lamports:  record.Lamports,
		Signature: record.Signature,
		Error:     record.Error,
		Success:   record.Success,
		Timestamp: record.Timestamp,
	}
}

func (m distributionRecordModel) toEntity() entities.DistributionRecord {
	return entities.DistributionRecord{
		ID:        m.ID,
		SessionID: m.SessionID,
		Wallet:    m.Wallet,
		Lamports:  m.Lamports,
		Signature: m.Signature,
		Error:     m.Error,
		Success:   m.Success,
		Timestamp: m.Timestamp,
	}
}
