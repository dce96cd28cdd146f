// Package store provides core.Store implementations: a SQLite-backed store
// for real runs and an in-memory store for tests.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/vampirenirmal/storyloom/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS content_units (
	id TEXT PRIMARY KEY,
	order_index INTEGER NOT NULL DEFAULT 0,
	title TEXT NOT NULL DEFAULT '',
	placeholder TEXT NOT NULL DEFAULT '',
	validator_notes TEXT NOT NULL DEFAULT '',
	draft_status TEXT NOT NULL DEFAULT 'idea',
	dense_summary TEXT NOT NULL DEFAULT '',
	context_snapshot TEXT NOT NULL DEFAULT '',
	last_prompt_hash TEXT NOT NULL DEFAULT '',
	context_token_estimate INTEGER NOT NULL DEFAULT 0,
	body TEXT NOT NULL DEFAULT '',
	synopsis TEXT NOT NULL DEFAULT '',
	participant_ids TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_content_units_order ON content_units(order_index);

CREATE TABLE IF NOT EXISTS story_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	core_themes TEXT NOT NULL DEFAULT '[]',
	terminologies TEXT NOT NULL DEFAULT '[]',
	tone_guidelines TEXT NOT NULL DEFAULT '',
	narrative_arc TEXT NOT NULL DEFAULT '',
	motifs TEXT NOT NULL DEFAULT '[]',
	world_rules TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS participants (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT '',
	bio TEXT NOT NULL DEFAULT '',
	traits TEXT NOT NULL DEFAULT '[]',
	is_point_of_view INTEGER NOT NULL DEFAULT 0,
	diction_rules TEXT NOT NULL DEFAULT '[]',
	forbidden_phrases TEXT NOT NULL DEFAULT '[]',
	signature_metaphors TEXT NOT NULL DEFAULT '[]'
);
`

var unitColumns = []string{
	"id", "order_index", "title", "placeholder", "validator_notes",
	"draft_status", "dense_summary", "context_snapshot", "last_prompt_hash",
	"context_token_estimate", "body", "synopsis", "participant_ids",
}

var participantColumns = []string{
	"id", "name", "role", "bio", "traits", "is_point_of_view",
	"diction_rules", "forbidden_phrases", "signature_metaphors",
}

var stateColumns = []string{
	"core_themes", "terminologies", "tone_guidelines", "narrative_arc",
	"motifs", "world_rules",
}

// SQLite persists the working set in a single database file. ":memory:" gives
// an ephemeral store.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	// A single writer keeps things simple; WAL still helps the refresh
	// scan read concurrently.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// DB exposes the handle for ad-hoc inspection tooling.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

func (s *SQLite) GetUnit(ctx context.Context, id string) (core.ContentUnit, error) {
	query, args, err := sq.Select(unitColumns...).
		From("content_units").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return core.ContentUnit{}, fmt.Errorf("building query: %w", err)
	}

	unit, err := scanUnit(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return core.ContentUnit{}, core.ErrUnitNotFound
	}
	if err != nil {
		return core.ContentUnit{}, fmt.Errorf("loading unit %s: %w", id, err)
	}
	return unit, nil
}

func (s *SQLite) PutUnit(ctx context.Context, unit core.ContentUnit) error {
	participantIDs, err := marshalStrings(unit.ParticipantIDs)
	if err != nil {
		return fmt.Errorf("encoding participant ids: %w", err)
	}

	query, args, err := sq.Replace("content_units").
		Columns(unitColumns...).
		Values(
			unit.ID, unit.OrderIndex, unit.Title, unit.Placeholder,
			unit.ValidatorNotes, string(unit.DraftStatus), unit.DenseSummary,
			unit.ContextSnapshot, unit.LastPromptHash, unit.ContextTokenEstimate,
			unit.Body, unit.Synopsis, participantIDs,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("building upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("storing unit %s: %w", unit.ID, err)
	}
	return nil
}

func (s *SQLite) ListUnits(ctx context.Context) ([]core.ContentUnit, error) {
	query, args, err := sq.Select(unitColumns...).
		From("content_units").
		OrderBy("order_index ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing units: %w", err)
	}
	defer rows.Close()

	var units []core.ContentUnit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning unit row: %w", err)
		}
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating units: %w", err)
	}
	return units, nil
}

func (s *SQLite) DeleteUnit(ctx context.Context, id string) error {
	query, args, err := sq.Delete("content_units").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting unit %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrUnitNotFound
	}
	return nil
}

func (s *SQLite) GetState(ctx context.Context) (core.StoryState, error) {
	query, args, err := sq.Select(stateColumns...).
		From("story_state").
		Where(sq.Eq{"id": 1}).
		ToSql()
	if err != nil {
		return core.StoryState{}, fmt.Errorf("building query: %w", err)
	}

	var (
		state                                  core.StoryState
		themes, terms, motifs, rules, toneGuid string
		arc                                    string
	)
	row := s.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&themes, &terms, &toneGuid, &arc, &motifs, &rules); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.StoryState{}, core.ErrNoStoryState
		}
		return core.StoryState{}, fmt.Errorf("loading story state: %w", err)
	}

	state.ToneGuidelines = toneGuid
	state.NarrativeArc = arc
	if err := unmarshalStrings(themes, &state.CoreThemes); err != nil {
		return core.StoryState{}, fmt.Errorf("decoding core themes: %w", err)
	}
	if err := unmarshalJSON(terms, &state.Terminologies); err != nil {
		return core.StoryState{}, fmt.Errorf("decoding terminologies: %w", err)
	}
	if len(state.Terminologies) == 0 {
		state.Terminologies = nil
	}
	if err := unmarshalStrings(motifs, &state.Motifs); err != nil {
		return core.StoryState{}, fmt.Errorf("decoding motifs: %w", err)
	}
	if err := unmarshalStrings(rules, &state.WorldRules); err != nil {
		return core.StoryState{}, fmt.Errorf("decoding world rules: %w", err)
	}
	return state, nil
}

func (s *SQLite) PutState(ctx context.Context, state core.StoryState) error {
	themes, err := marshalStrings(state.CoreThemes)
	if err != nil {
		return fmt.Errorf("encoding core themes: %w", err)
	}
	terms, err := marshalJSON(state.Terminologies)
	if err != nil {
		return fmt.Errorf("encoding terminologies: %w", err)
	}
	motifs, err := marshalStrings(state.Motifs)
	if err != nil {
		return fmt.Errorf("encoding motifs: %w", err)
	}
	rules, err := marshalStrings(state.WorldRules)
	if err != nil {
		return fmt.Errorf("encoding world rules: %w", err)
	}

	query, args, err := sq.Replace("story_state").
		Columns(append([]string{"id"}, stateColumns...)...).
		Values(1, themes, terms, state.ToneGuidelines, state.NarrativeArc, motifs, rules).
		ToSql()
	if err != nil {
		return fmt.Errorf("building upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("storing story state: %w", err)
	}
	return nil
}

func (s *SQLite) GetParticipant(ctx context.Context, id string) (core.Participant, error) {
	query, args, err := sq.Select(participantColumns...).
		From("participants").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return core.Participant{}, fmt.Errorf("building query: %w", err)
	}

	p, err := scanParticipant(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Participant{}, core.ErrParticipantNotFound
	}
	if err != nil {
		return core.Participant{}, fmt.Errorf("loading participant %s: %w", id, err)
	}
	return p, nil
}

func (s *SQLite) PutParticipant(ctx context.Context, p core.Participant) error {
	traits, err := marshalStrings(p.Traits)
	if err != nil {
		return fmt.Errorf("encoding traits: %w", err)
	}
	diction, err := marshalStrings(p.DictionRules)
	if err != nil {
		return fmt.Errorf("encoding diction rules: %w", err)
	}
	forbidden, err := marshalStrings(p.ForbiddenPhrases)
	if err != nil {
		return fmt.Errorf("encoding forbidden phrases: %w", err)
	}
	metaphors, err := marshalStrings(p.SignatureMetaphors)
	if err != nil {
		return fmt.Errorf("encoding signature metaphors: %w", err)
	}

	query, args, err := sq.Replace("participants").
		Columns(participantColumns...).
		Values(p.ID, p.Name, p.Role, p.Bio, traits, boolToInt(p.IsPointOfView), diction, forbidden, metaphors).
		ToSql()
	if err != nil {
		return fmt.Errorf("building upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("storing participant %s: %w", p.ID, err)
	}
	return nil
}

func (s *SQLite) ListParticipants(ctx context.Context) ([]core.Participant, error) {
	query, args, err := sq.Select(participantColumns...).
		From("participants").
		OrderBy("name ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}
	defer rows.Close()

	var participants []core.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning participant row: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating participants: %w", err)
	}
	return participants, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUnit(row scanner) (core.ContentUnit, error) {
	var (
		unit           core.ContentUnit
		status         string
		participantIDs string
	)
	err := row.Scan(
		&unit.ID, &unit.OrderIndex, &unit.Title, &unit.Placeholder,
		&unit.ValidatorNotes, &status, &unit.DenseSummary,
		&unit.ContextSnapshot, &unit.LastPromptHash, &unit.ContextTokenEstimate,
		&unit.Body, &unit.Synopsis, &participantIDs,
	)
	if err != nil {
		return core.ContentUnit{}, err
	}
	unit.DraftStatus = core.DraftStatus(status)
	if err := unmarshalStrings(participantIDs, &unit.ParticipantIDs); err != nil {
		return core.ContentUnit{}, fmt.Errorf("decoding participant ids: %w", err)
	}
	return unit, nil
}

func scanParticipant(row scanner) (core.Participant, error) {
	var (
		p                                    core.Participant
		pov                                  int
		traits, diction, forbidden, metaphr string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Role, &p.Bio, &traits, &pov, &diction, &forbidden, &metaphr)
	if err != nil {
		return core.Participant{}, err
	}
	p.IsPointOfView = pov != 0
	if err := unmarshalStrings(traits, &p.Traits); err != nil {
		return core.Participant{}, fmt.Errorf("decoding traits: %w", err)
	}
	if err := unmarshalStrings(diction, &p.DictionRules); err != nil {
		return core.Participant{}, fmt.Errorf("decoding diction rules: %w", err)
	}
	if err := unmarshalStrings(forbidden, &p.ForbiddenPhrases); err != nil {
		return core.Participant{}, fmt.Errorf("decoding forbidden phrases: %w", err)
	}
	if err := unmarshalStrings(metaphr, &p.SignatureMetaphors); err != nil {
		return core.Participant{}, fmt.Errorf("decoding signature metaphors: %w", err)
	}
	return p, nil
}

func marshalStrings(values []string) (string, error) {
	if values == nil {
		return "[]", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalStrings(data string, dest *[]string) error {
	if data == "" || data == "[]" || data == "null" {
		*dest = nil
		return nil
	}
	return json.Unmarshal([]byte(data), dest)
}

func unmarshalJSON[T any](data string, dest *T) error {
	if data == "" || data == "null" {
		return nil
	}
	return json.Unmarshal([]byte(data), dest)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
