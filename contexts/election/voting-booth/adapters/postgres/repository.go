package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ballotbooth/contexts/election/voting-booth/domain/entities"
	domainerrors "ballotbooth/contexts/election/voting-booth/domain/errors"
	"ballotbooth/contexts/election/voting-booth/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
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

// Migrate creates the booth tables when they are missing. Existing columns
// are never dropped.
func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(
		&voterModel{},
		&voteModel{},
		&outboxModel{},
		&eventDedupModel{},
	); err != nil {
		return r.logError("booth_repo_migrate_failed", err)
	}
	return nil
}

func (r *Repository) GetVoter(ctx context.Context, voterID string) (entities.Voter, error) {
	var row voterModel
	err := r.db.WithContext(ctx).
		Where("voter_id = ?", strings.TrimSpace(voterID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Voter{}, domainerrors.ErrVoterNotFound
		}
		return entities.Voter{}, r.storeFailure("booth_repo_get_voter_failed", err, "voter_id", strings.TrimSpace(voterID))
	}
	return row.toEntity(), nil
}

func (r *Repository) CreateVoter(ctx context.Context, voter entities.Voter) error {
	row := voterModelFromEntity(voter)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrVoterExists
		}
		return r.storeFailure("booth_repo_create_voter_failed", err, "voter_id", row.VoterID)
	}
	return nil
}

func (r *Repository) UpdateVoter(ctx context.Context, voter entities.Voter) error {
	row := voterModelFromEntity(voter)
	result := r.db.WithContext(ctx).
		Model(&voterModel{}).
		Where("voter_id = ?", row.VoterID).
		Updates(map[string]any{
			"name":                 row.Name,
			"date_of_birth":        row.DateOfBirth,
			"phone":                row.Phone,
			"fingerprint_template": row.FingerprintTemplate,
			"face_template":        row.FaceTemplate,
			"updated_at":           row.UpdatedAt,
		})
	if result.Error != nil {
		return r.storeFailure("booth_repo_update_voter_failed", result.Error, "voter_id", row.VoterID)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrVoterNotFound
	}
	return nil
}

func (r *Repository) DeleteVoter(ctx context.Context, voterID string) error {
	result := r.db.WithContext(ctx).
		Where("voter_id = ?", strings.TrimSpace(voterID)).
		Delete(&voterModel{})
	if result.Error != nil {
		return r.storeFailure("booth_repo_delete_voter_failed", result.Error, "voter_id", strings.TrimSpace(voterID))
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrVoterNotFound
	}
	return nil
}

func (r *Repository) ListVoters(ctx context.Context) ([]entities.Voter, error) {
	var rows []voterModel
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("voter_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.storeFailure("booth_repo_list_voters_failed", err)
	}
	items := make([]entities.Voter, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ResetVoted(ctx context.Context, voterID string, clearTemplates bool, updatedAt time.Time) error {
	updates := map[string]any{
		"has_voted":  false,
		"updated_at": updatedAt.UTC(),
	}
	if clearTemplates {
		updates["fingerprint_template"] = ""
		updates["face_template"] = nil
	}
	result := r.db.WithContext(ctx).
		Model(&voterModel{}).
		Where("voter_id = ?", strings.TrimSpace(voterID)).
		Updates(updates)
	if result.Error != nil {
		return r.storeFailure("booth_repo_reset_voted_failed", result.Error, "voter_id", strings.TrimSpace(voterID))
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrVoterNotFound
	}
	return nil
}

// CastVote locks the voter row for the duration of the transaction, so two
// concurrent casts for one voter serialize and the second sees has_voted.
func (r *Repository) CastVote(ctx context.Context, vote entities.Vote, event ports.EventEnvelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return r.logError("booth_repo_cast_vote_marshal_failed", err,
			"event_id", strings.TrimSpace(event.EventID),
		)
	}
	voterID := strings.TrimSpace(vote.VoterID)
	castAt := vote.CastAt.UTC()
	if castAt.IsZero() {
		castAt = time.Now().UTC()
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var voter voterModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("voter_id = ?", voterID).
			First(&voter).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrVoterNotFound
			}
			return err
		}
		if voter.HasVoted {
			return domainerrors.ErrAlreadyVoted
		}

		row := voteModel{
			VoteID:    strings.TrimSpace(vote.VoteID),
			VoterID:   voterID,
			Candidate: vote.Candidate,
			CastAt:    castAt,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		if err := tx.Model(&voterModel{}).
			Where("voter_id = ?", voterID).
			Updates(map[string]any{
				"has_voted":  true,
				"updated_at": castAt,
			}).
			Error; err != nil {
			return err
		}

		outbox := outboxModel{
			OutboxID:     strings.TrimSpace(event.EventID),
			EventType:    strings.TrimSpace(event.EventType),
			PartitionKey: strings.TrimSpace(event.PartitionKey),
			Payload:      payload,
			Status:       outboxStatusPending,
			CreatedAt:    event.OccurredAt.UTC(),
		}
		if outbox.OutboxID == "" {
			outbox.OutboxID = uuid.NewString()
		}
		if outbox.CreatedAt.IsZero() {
			outbox.CreatedAt = castAt
		}
		return tx.Create(&outbox).Error
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrVoterNotFound) || errors.Is(err, domainerrors.ErrAlreadyVoted) {
			return err
		}
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return r.storeFailure("booth_repo_cast_vote_failed", err,
			"vote_id", strings.TrimSpace(vote.VoteID),
			"voter_id", voterID,
		)
	}
	return nil
}

func (r *Repository) ListVotes(ctx context.Context) ([]entities.Vote, error) {
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Order("cast_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.storeFailure("booth_repo_list_votes_failed", err)
	}
	items := make([]entities.Vote, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, r.logError("booth_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("booth_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) ReserveEvent(
	ctx context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	now := time.Now().UTC()
	row := eventDedupModel{
		EventID:     strings.TrimSpace(eventID),
		PayloadHash: strings.TrimSpace(payloadHash),
		ExpiresAt:   expiresAt.UTC(),
		ProcessedAt: now,
	}
	create := r.db.WithContext(ctx).Clauses(replaceExpiredReservation(now)).Create(&row)
	if create.Error != nil {
		return false, r.logError("booth_repo_reserve_event_failed", create.Error,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	if create.RowsAffected > 0 {
		return false, nil
	}

	var existing eventDedupModel
	if err := r.db.WithContext(ctx).
		Select("payload_hash").
		Where("event_id = ?", row.EventID).
		First(&existing).Error; err != nil {
		return false, r.logError("booth_repo_reserve_event_load_existing_failed", err,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	if existing.PayloadHash != row.PayloadHash {
		return false, domainerrors.ErrConflict
	}
	return true, nil
}

// replaceExpiredReservation inserts a reservation or overwrites one whose
// expires_at has passed. A live reservation is left alone and the insert
// affects no rows.
func replaceExpiredReservation(now time.Time) clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload_hash", "expires_at", "processed_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Lt{Column: clause.Column{Table: eventDedupModel{}.TableName(), Name: "expires_at"}, Value: now},
		}},
	}
}

func (r *Repository) storeFailure(event string, err error, attrs ...any) error {
	return fmt.Errorf("%w: %w", domainerrors.ErrStoreFailure, r.logError(event, err, attrs...))
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "election/voting-booth",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("booth repository operation failed", fields...)
	return err
}

type voterModel struct {
	VoterID             string    `gorm:"column:voter_id;primaryKey"`
	Name                string    `gorm:"column:name;not null"`
	DateOfBirth         string    `gorm:"column:date_of_birth;not null"`
	Phone               string    `gorm:"column:phone"`
	FingerprintTemplate string    `gorm:"column:fingerprint_template"`
	FaceTemplate        []byte    `gorm:"column:face_template;type:bytea"`
	HasVoted            bool      `gorm:"column:has_voted;not null;default:false"`
	CreatedAt           time.Time `gorm:"column:created_at"`
	UpdatedAt           time.Time `gorm:"column:updated_at"`
}

func (voterModel) TableName() string {
	return "voters"
}

func voterModelFromEntity(voter entities.Voter) voterModel {
	row := voterModel{
		VoterID:             strings.TrimSpace(voter.VoterID),
		Name:                strings.TrimSpace(voter.Name),
		DateOfBirth:         strings.TrimSpace(voter.DateOfBirth),
		Phone:               strings.TrimSpace(voter.Phone),
		FingerprintTemplate: voter.FingerprintTemplate,
		HasVoted:            voter.HasVoted,
		CreatedAt:           voter.CreatedAt.UTC(),
		UpdatedAt:           voter.UpdatedAt.UTC(),
	}
	if len(voter.FaceTemplate) > 0 {
		row.FaceTemplate = append([]byte(nil), voter.FaceTemplate...)
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m voterModel) toEntity() entities.Voter {
	voter := entities.Voter{
		VoterID:             m.VoterID,
		Name:                m.Name,
		DateOfBirth:         m.DateOfBirth,
		Phone:               m.Phone,
		FingerprintTemplate: m.FingerprintTemplate,
		HasVoted:            m.HasVoted,
		CreatedAt:           m.CreatedAt.UTC(),
		UpdatedAt:           m.UpdatedAt.UTC(),
	}
	if len(m.FaceTemplate) > 0 {
		voter.FaceTemplate = append([]byte(nil), m.FaceTemplate...)
	}
	return voter
}

type voteModel struct {
	VoteID    string    `gorm:"column:vote_id;primaryKey"`
	VoterID   string    `gorm:"column:voter_id;index;not null"`
	Candidate string    `gorm:"column:candidate;not null"`
	CastAt    time.Time `gorm:"column:cast_at"`
}

func (voteModel) TableName() string {
	return "votes"
}

func (m voteModel) toEntity() entities.Vote {
	return entities.Vote{
		VoteID:    m.VoteID,
		VoterID:   m.VoterID,
		Candidate: m.Candidate,
		CastAt:    m.CastAt.UTC(),
	}
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "booth_outbox"
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "booth_event_dedup"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

var _ ports.VoterRepository = (*Repository)(nil)
var _ ports.BallotBox = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.EventDedupStore = (*Repository)(nil)
