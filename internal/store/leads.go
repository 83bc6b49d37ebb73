package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/qosqo/leadscout/internal/lead"
)

const leadColumns = `id, name, username, profile_url, location, platform, source_url,
	contact_json, phase, status, score, breakdown_json, interactions_json,
	keywords_json, interests_json, destinations_json, language, is_bot,
	bot_probability, notes_json, last_interaction_at, created_at, updated_at`

// InsertLead persists a new lead. Zero timestamps are stamped now.
func (s *Store) InsertLead(ctx context.Context, l *lead.Lead) error {
	now := time.Now()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = now
	}
	if l.Status == "" {
		l.Status = lead.StatusNew
	}
	if l.Phase == "" {
		l.Phase = lead.PhaseUnknown
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO leads (`+leadColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Name, l.Username, l.ProfileURL, l.Location, l.SourcePlatform, l.SourceURL,
		mustJSON(l.Contact), string(l.Phase), string(l.Status), l.Score,
		mustJSON(l.Breakdown), mustJSON(l.Interactions),
		mustJSON(l.Keywords), mustJSON(l.Interests), mustJSON(l.Destinations),
		l.Language, l.IsBot, l.BotProbability, mustJSON(l.Notes),
		optMilli(l.LastInteractionAt), l.CreatedAt.UnixMilli(), l.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store: insert lead: %w", err)
	}
	return nil
}

// GetLead retrieves one lead. Returns sql.ErrNoRows when absent.
func (s *Store) GetLead(ctx context.Context, id string) (*lead.Lead, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = ?`, id)
	return scanLead(row)
}

// UpdateLead rewrites a lead's mutable fields and stamps updated_at.
func (s *Store) UpdateLead(ctx context.Context, l *lead.Lead) error {
	l.UpdatedAt = time.Now()
	res, err := s.DB.ExecContext(ctx,
		`UPDATE leads SET name=?, username=?, profile_url=?, location=?,
		platform=?, source_url=?, contact_json=?, phase=?, status=?, score=?,
		breakdown_json=?, interactions_json=?, keywords_json=?, interests_json=?,
		destinations_json=?, language=?, is_bot=?, bot_probability=?, notes_json=?,
		last_interaction_at=?, updated_at=?
		WHERE id=?`,
		l.Name, l.Username, l.ProfileURL, l.Location,
		l.SourcePlatform, l.SourceURL, mustJSON(l.Contact), string(l.Phase), string(l.Status), l.Score,
		mustJSON(l.Breakdown), mustJSON(l.Interactions), mustJSON(l.Keywords), mustJSON(l.Interests),
		mustJSON(l.Destinations), l.Language, l.IsBot, l.BotProbability, mustJSON(l.Notes),
		optMilli(l.LastInteractionAt), l.UpdatedAt.UnixMilli(), l.ID,
	)
	if err != nil {
		return fmt.Errorf("store: update lead: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteLead removes a lead. Returns sql.ErrNoRows when absent.
func (s *Store) DeleteLead(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM leads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete lead: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListFilter narrows and orders a lead listing. Zero values mean "any".
type ListFilter struct {
	Status   lead.Status
	Phase    lead.Phase
	Platform string
	MinScore int
	MaxScore int // 0 = unbounded

	// SortBy is one of "score", "created_at", "updated_at". Default:
	// score descending.
	SortBy string

	Limit  int // default 20
	Offset int
}

// ListLeads returns leads matching the filter, newest/highest first.
func (s *Store) ListLeads(ctx context.Context, f ListFilter) ([]*lead.Lead, error) {
	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Phase != "" {
		where = append(where, "phase = ?")
		args = append(args, string(f.Phase))
	}
	if f.Platform != "" {
		where = append(where, "platform = ?")
		args = append(args, f.Platform)
	}
	if f.MinScore > 0 {
		where = append(where, "score >= ?")
		args = append(args, f.MinScore)
	}
	if f.MaxScore > 0 {
		where = append(where, "score <= ?")
		args = append(args, f.MaxScore)
	}

	order := "score DESC"
	switch f.SortBy {
	case "created_at":
		order = "created_at DESC"
	case "updated_at":
		order = "updated_at DESC"
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	q := `SELECT ` + leadColumns + ` FROM leads`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + order + " LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list leads: %w", err)
	}
	defer rows.Close()

	var leads []*lead.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// CountByPlatform returns lead counts grouped by source platform,
// largest groups first, capped at the top five.
func (s *Store) CountByPlatform(ctx context.Context) (map[string]int, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT platform, COUNT(*) FROM leads
		GROUP BY platform ORDER BY COUNT(*) DESC LIMIT 5`)
	if err != nil {
		return nil, fmt.Errorf("store: count by platform: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var platform string
		var n int
		if err := rows.Scan(&platform, &n); err != nil {
			return nil, err
		}
		if platform != "" {
			out[platform] = n
		}
	}
	return out, rows.Err()
}

// Stats summarizes the lead pool for the dashboard.
type Stats struct {
	Total      int            `json:"total"`
	Hot        int            `json:"hot"`
	Warm       int            `json:"warm"`
	Cold       int            `json:"cold"`
	ByPhase    map[string]int `json:"by_phase"`
	ByStatus   map[string]int `json:"by_status"`
	ByPlatform map[string]int `json:"by_platform"`
}

// LeadStats computes pool-wide counts. Hot and warm follow the given
// score thresholds; cold is everything below warm.
func (s *Store) LeadStats(ctx context.Context, hot, warm int) (*Stats, error) {
	st := &Stats{
		ByPhase:  map[string]int{},
		ByStatus: map[string]int{},
	}

	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*),
		COALESCE(SUM(score >= ?), 0),
		COALESCE(SUM(score >= ? AND score < ?), 0),
		COALESCE(SUM(score < ?), 0)
		FROM leads`, hot, warm, hot, warm).
		Scan(&st.Total, &st.Hot, &st.Warm, &st.Cold)
	if err != nil {
		return nil, fmt.Errorf("store: lead stats: %w", err)
	}

	if err := s.countGroup(ctx, "phase", st.ByPhase); err != nil {
		return nil, err
	}
	if err := s.countGroup(ctx, "status", st.ByStatus); err != nil {
		return nil, err
	}

	byPlatform, err := s.CountByPlatform(ctx)
	if err != nil {
		return nil, err
	}
	st.ByPlatform = byPlatform
	return st, nil
}

func (s *Store) countGroup(ctx context.Context, column string, dst map[string]int) error {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+column+`, COUNT(*) FROM leads GROUP BY `+column)
	if err != nil {
		return fmt.Errorf("store: count by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		dst[key] = n
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLead(row scanner) (*lead.Lead, error) {
	var l lead.Lead
	var contactJSON, breakdownJSON, interactionsJSON string
	var keywordsJSON, interestsJSON, destinationsJSON, notesJSON string
	var phase, status string
	var lastInteraction sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&l.ID, &l.Name, &l.Username, &l.ProfileURL, &l.Location, &l.SourcePlatform, &l.SourceURL,
		&contactJSON, &phase, &status, &l.Score, &breakdownJSON, &interactionsJSON,
		&keywordsJSON, &interestsJSON, &destinationsJSON, &l.Language, &l.IsBot,
		&l.BotProbability, &notesJSON, &lastInteraction, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Phase = lead.Phase(phase)
	l.Status = lead.Status(status)
	l.CreatedAt = time.UnixMilli(createdAt)
	l.UpdatedAt = time.UnixMilli(updatedAt)
	if lastInteraction.Valid {
		t := time.UnixMilli(lastInteraction.Int64)
		l.LastInteractionAt = &t
	}

	for _, p := range []struct {
		src string
		dst any
	}{
		{contactJSON, &l.Contact},
		{breakdownJSON, &l.Breakdown},
		{interactionsJSON, &l.Interactions},
		{keywordsJSON, &l.Keywords},
		{interestsJSON, &l.Interests},
		{destinationsJSON, &l.Destinations},
		{notesJSON, &l.Notes},
	} {
		if err := json.Unmarshal([]byte(p.src), p.dst); err != nil {
			return nil, fmt.Errorf("store: decode lead %s: %w", l.ID, err)
		}
	}
	return &l, nil
}

// mustJSON encodes v for a JSON column. The lead types contain nothing
// unmarshalable, so an encode failure is a programming error.
func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("store: marshal: %v", err))
	}
	return string(b)
}

func optMilli(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
