package bots

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/leadrelay/leadrelay/internal/db"
)

var ErrBotNotFound = errors.New("bot not found")

// Service resolves inbound channel identities to bot configuration,
// auto-provisioning on first contact.
type Service struct {
	conn         db.Conn
	defaultModel string
	logger       *slog.Logger
}

// NewService creates a bot registry.
func NewService(log *slog.Logger, conn db.Conn, defaultModel string) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		conn:         conn,
		defaultModel: defaultModel,
		logger:       log.With(slog.String("service", "bots")),
	}
}

// Resolve returns the bot for the given instance, creating one with the
// default model and empty business context when absent. Concurrent first
// contact is resolved by the store's unique constraint: the loser of the
// insert race fetches the winner's row.
func (s *Service) Resolve(ctx context.Context, instance string) (Bot, error) {
	if s.conn == nil {
		return Bot{}, fmt.Errorf("bot registry not configured")
	}
	instance = strings.TrimSpace(instance)
	if instance == "" {
		return Bot{}, fmt.Errorf("instance is required")
	}

	bot, err := s.getByInstance(ctx, instance)
	if err == nil {
		return bot, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Bot{}, fmt.Errorf("lookup bot: %w", err)
	}

	row := s.conn.QueryRow(ctx, `
		INSERT INTO bots (instance, model, business_context)
		VALUES ($1, $2, '{}'::jsonb)
		ON CONFLICT (instance) DO NOTHING
		RETURNING id, instance, model, business_context, created_at, updated_at`,
		instance, s.defaultModel)
	bot, err = scanBot(row)
	if err == nil {
		s.logger.Info("bot provisioned", slog.String("instance", instance), slog.String("bot_id", bot.ID))
		return bot, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Bot{}, fmt.Errorf("provision bot: %w", err)
	}

	// Lost the insert race; the winner's row exists now.
	bot, err = s.getByInstance(ctx, instance)
	if err != nil {
		return Bot{}, fmt.Errorf("lookup bot after race: %w", err)
	}
	return bot, nil
}

// Get returns a bot by id.
func (s *Service) Get(ctx context.Context, botID string) (Bot, error) {
	if s.conn == nil {
		return Bot{}, fmt.Errorf("bot registry not configured")
	}
	row := s.conn.QueryRow(ctx, `
		SELECT id, instance, model, business_context, created_at, updated_at
		FROM bots WHERE id = $1`, botID)
	bot, err := scanBot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bot{}, ErrBotNotFound
		}
		return Bot{}, fmt.Errorf("get bot: %w", err)
	}
	return bot, nil
}

// Update applies out-of-band configuration changes to a bot.
func (s *Service) Update(ctx context.Context, botID string, req UpdateBotRequest) (Bot, error) {
	if s.conn == nil {
		return Bot{}, fmt.Errorf("bot registry not configured")
	}
	current, err := s.Get(ctx, botID)
	if err != nil {
		return Bot{}, err
	}
	model := current.Model
	if req.Model != nil && strings.TrimSpace(*req.Model) != "" {
		model = strings.TrimSpace(*req.Model)
	}
	contextDoc := current.BusinessContext
	if req.BusinessContext != nil {
		contextDoc = req.BusinessContext
	}
	payload, err := json.Marshal(nonNilMap(contextDoc))
	if err != nil {
		return Bot{}, fmt.Errorf("marshal business context: %w", err)
	}
	row := s.conn.QueryRow(ctx, `
		UPDATE bots SET model = $2, business_context = $3, updated_at = now()
		WHERE id = $1
		RETURNING id, instance, model, business_context, created_at, updated_at`,
		botID, model, payload)
	bot, err := scanBot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bot{}, ErrBotNotFound
		}
		return Bot{}, fmt.Errorf("update bot: %w", err)
	}
	return bot, nil
}

func (s *Service) getByInstance(ctx context.Context, instance string) (Bot, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT id, instance, model, business_context, created_at, updated_at
		FROM bots WHERE instance = $1`, instance)
	return scanBot(row)
}

func scanBot(row pgx.Row) (Bot, error) {
	var (
		bot        Bot
		contextRaw []byte
		createdAt  pgtype.Timestamptz
		updatedAt  pgtype.Timestamptz
	)
	if err := row.Scan(&bot.ID, &bot.Instance, &bot.Model, &contextRaw, &createdAt, &updatedAt); err != nil {
		return Bot{}, err
	}
	if len(contextRaw) > 0 {
		if err := json.Unmarshal(contextRaw, &bot.BusinessContext); err != nil {
			return Bot{}, fmt.Errorf("decode business context: %w", err)
		}
	}
	bot.CreatedAt = createdAt.Time
	bot.UpdatedAt = updatedAt.Time
	return bot, nil
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
