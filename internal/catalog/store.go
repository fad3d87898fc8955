package catalog

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"gamehub/internal/storage"
	logx "gamehub/pkg/logx"
)

// Collection names in the backing store.
const (
	colContent     = "content"
	colGiveaways   = "giveaways"
	colUsers       = "users"
	colSuggestions = "suggestions"
	colAdmins      = "admins"
)

// Store owns the in-memory collections and is the only component allowed to
// mutate them. Every mutating operation saves synchronously before reporting
// success; on a save failure the in-memory change is rolled back and a
// *PersistError returned.
//
// A single mutex guards all collections. That makes membership-check+append
// (AddParticipant) and read-participants+write-winner (EndGiveaway) each one
// uninterrupted step, which is where the at-most-once guarantees come from.
type Store struct {
	log   logx.Logger
	back  storage.Store
	clock func() time.Time

	mu          sync.Mutex
	content     []ContentRecord
	giveaways   []GiveawayRecord
	users       []UserRecord
	suggestions []SuggestionRecord
	admins      []AdminRecord
}

func NewStore(back storage.Store, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{log: log, back: back, clock: time.Now}
}

// Load reads every collection from the backing store. A collection that has
// never been saved starts empty; any other error aborts startup.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range []struct {
		name string
		out  any
	}{
		{colContent, &s.content},
		{colGiveaways, &s.giveaways},
		{colUsers, &s.users},
		{colSuggestions, &s.suggestions},
		{colAdmins, &s.admins},
	} {
		if err := s.back.LoadCollection(ctx, c.name, c.out); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return err
		}
	}
	s.log.Info("catalog loaded",
		logx.Int("content", len(s.content)),
		logx.Int("giveaways", len(s.giveaways)),
		logx.Int("users", len(s.users)))
	return nil
}

func (s *Store) save(ctx context.Context, name string, v any) error {
	if err := s.back.SaveCollection(ctx, name, v); err != nil {
		return &PersistError{Collection: name, Err: err}
	}
	return nil
}

// ---- content ----

type ContentInput struct {
	Name         string
	Genre        string
	SizeCategory string
	Description  string
	PostLink     string
	FileLink     string
	FilePath     string
	FileName     string
}

func (s *Store) AddContent(ctx context.Context, in ContentInput) (int, error) {
	if strings.TrimSpace(in.Name) == "" {
		return 0, fmt.Errorf("%w: name is required", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	rec := ContentRecord{
		ID:           s.nextContentIDLocked(),
		Name:         strings.TrimSpace(in.Name),
		Genre:        in.Genre,
		SizeCategory: in.SizeCategory,
		Description:  in.Description,
		PostLink:     in.PostLink,
		FileLink:     in.FileLink,
		FilePath:     in.FilePath,
		FileName:     in.FileName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.content = append(s.content, rec)
	if err := s.save(ctx, colContent, s.content); err != nil {
		s.content = s.content[:len(s.content)-1]
		return 0, err
	}
	return rec.ID, nil
}

func (s *Store) UpdateContent(ctx context.Context, id int, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.contentIndexLocked(id)
	if i < 0 {
		return ErrNotFound
	}
	prev := s.content[i]
	rec := &s.content[i]
	switch field {
	case "name":
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: name is required", ErrValidation)
		}
		rec.Name = strings.TrimSpace(value)
	case "genre":
		rec.Genre = value
	case "size_category":
		rec.SizeCategory = value
	case "description":
		rec.Description = value
	case "post_link":
		rec.PostLink = value
	case "file_link":
		rec.FileLink = value
	case "file_path":
		rec.FilePath = value
	case "file_name":
		rec.FileName = value
	default:
		return fmt.Errorf("%w: unknown field %q", ErrValidation, field)
	}
	rec.UpdatedAt = s.clock()

	if err := s.save(ctx, colContent, s.content); err != nil {
		s.content[i] = prev
		return err
	}
	return nil
}

func (s *Store) DeleteContent(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.contentIndexLocked(id)
	if i < 0 {
		return ErrNotFound
	}
	prev := s.content
	s.content = append(append([]ContentRecord{}, s.content[:i]...), s.content[i+1:]...)
	if err := s.save(ctx, colContent, s.content); err != nil {
		s.content = prev
		return err
	}
	return nil
}

func (s *Store) GetContent(id int) (ContentRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.contentIndexLocked(id); i >= 0 {
		return s.content[i], true
	}
	return ContentRecord{}, false
}

func (s *Store) Contents() []ContentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ContentRecord(nil), s.content...)
}

func (s *Store) SearchByName(q string) []ContentRecord {
	return s.filterContent(func(c ContentRecord) bool {
		return strings.Contains(strings.ToLower(c.Name), strings.ToLower(q))
	})
}

func (s *Store) SearchByGenre(genre string) []ContentRecord {
	return s.filterContent(func(c ContentRecord) bool {
		return strings.EqualFold(c.Genre, genre)
	})
}

func (s *Store) SearchBySize(size string) []ContentRecord {
	return s.filterContent(func(c ContentRecord) bool {
		return strings.EqualFold(c.SizeCategory, size)
	})
}

func (s *Store) RandomContent() (ContentRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.content) == 0 {
		return ContentRecord{}, false
	}
	return s.content[rand.Intn(len(s.content))], true
}

func (s *Store) filterContent(keep func(ContentRecord) bool) []ContentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ContentRecord
	for _, c := range s.content {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Store) contentIndexLocked(id int) int {
	for i := range s.content {
		if s.content[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) nextContentIDLocked() int {
	next := 1
	for _, c := range s.content {
		if c.ID >= next {
			next = c.ID + 1
		}
	}
	return next
}

// ---- giveaways ----

type GiveawayInput struct {
	Title       string
	Description string
	Prize       string
	EndAt       string // EndTimeLayout
}

func (s *Store) AddGiveaway(ctx context.Context, in GiveawayInput) (int, error) {
	if strings.TrimSpace(in.Title) == "" {
		return 0, fmt.Errorf("%w: title is required", ErrValidation)
	}
	// Reject unparsable end dates up front; otherwise the record would sit in
	// the monitor's scan forever without ever expiring.
	if _, err := time.ParseInLocation(EndTimeLayout, in.EndAt, time.Local); err != nil {
		return 0, fmt.Errorf("%w: end date %q does not match %s", ErrValidation, in.EndAt, EndTimeLayout)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := GiveawayRecord{
		ID:           s.nextGiveawayIDLocked(),
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		Prize:        in.Prize,
		EndAt:        in.EndAt,
		CreatedAt:    s.clock(),
		Participants: []Participant{},
	}
	s.giveaways = append(s.giveaways, rec)
	if err := s.save(ctx, colGiveaways, s.giveaways); err != nil {
		s.giveaways = s.giveaways[:len(s.giveaways)-1]
		return 0, err
	}
	return rec.ID, nil
}

func (s *Store) UpdateGiveaway(ctx context.Context, id int, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.giveawayIndexLocked(id)
	if i < 0 {
		return ErrNotFound
	}
	prev := s.giveaways[i]
	rec := &s.giveaways[i]
	switch field {
	case "title":
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: title is required", ErrValidation)
		}
		rec.Title = strings.TrimSpace(value)
	case "description":
		rec.Description = value
	case "prize":
		rec.Prize = value
	case "end_datetime":
		if _, err := time.ParseInLocation(EndTimeLayout, value, time.Local); err != nil {
			return fmt.Errorf("%w: end date %q does not match %s", ErrValidation, value, EndTimeLayout)
		}
		rec.EndAt = value
	default:
		return fmt.Errorf("%w: unknown field %q", ErrValidation, field)
	}

	if err := s.save(ctx, colGiveaways, s.giveaways); err != nil {
		s.giveaways[i] = prev
		return err
	}
	return nil
}

func (s *Store) DeleteGiveaway(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.giveawayIndexLocked(id)
	if i < 0 {
		return ErrNotFound
	}
	prev := s.giveaways
	s.giveaways = append(append([]GiveawayRecord{}, s.giveaways[:i]...), s.giveaways[i+1:]...)
	if err := s.save(ctx, colGiveaways, s.giveaways); err != nil {
		s.giveaways = prev
		return err
	}
	return nil
}

// EndGiveaway marks the giveaway ended, recording the winner if one was
// drawn. A giveaway that already ended is left untouched: the recorded
// outcome, winner or winnerless expiry alike, is immutable.
func (s *Store) EndGiveaway(ctx context.Context, id int, winner *Winner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.giveawayIndexLocked(id)
	if i < 0 {
		return ErrNotFound
	}
	rec := &s.giveaways[i]
	if rec.Ended {
		return nil
	}
	prev := s.giveaways[i]
	rec.Ended = true
	if winner != nil {
		w := *winner
		rec.Winner = &w
	}

	if err := s.save(ctx, colGiveaways, s.giveaways); err != nil {
		s.giveaways[i] = prev
		return err
	}
	return nil
}

// DrawWinner ends the giveaway and selects a winner in one uninterrupted
// step: the participant list is read and the winner written under the same
// lock hold, so a concurrent AddParticipant can never land between the two.
// pick receives the participant count and returns the chosen index.
//
// A giveaway that already ended keeps its outcome: the existing winner (or
// nil for a no-participant expiry) is returned without a redraw.
func (s *Store) DrawWinner(ctx context.Context, id int, pick func(n int) int) (*Winner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.giveawayIndexLocked(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	rec := &s.giveaways[i]
	if rec.Ended {
		if rec.Winner != nil {
			w := *rec.Winner
			return &w, nil
		}
		return nil, nil
	}

	prev := s.giveaways[i]
	rec.Ended = true
	var won *Winner
	if n := len(rec.Participants); n > 0 {
		p := rec.Participants[pick(n)]
		rec.Winner = &Winner{ID: p.ID, Name: p.DisplayName()}
		w := *rec.Winner
		won = &w
	}

	if err := s.save(ctx, colGiveaways, s.giveaways); err != nil {
		s.giveaways[i] = prev
		return nil, err
	}
	return won, nil
}

// AddParticipant appends the user to the participant list unless they are
// already on it. The membership check and the append run under one lock, so
// the same user can never appear twice. Returns false (with no error) when
// the user had already joined.
func (s *Store) AddParticipant(ctx context.Context, giveawayID int, p Participant) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.giveawayIndexLocked(giveawayID)
	if i < 0 {
		return false, ErrNotFound
	}
	rec := &s.giveaways[i]
	if rec.Ended {
		return false, ErrGiveawayEnded
	}
	for _, existing := range rec.Participants {
		if existing.ID == p.ID {
			return false, nil
		}
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = s.clock()
	}
	rec.Participants = append(rec.Participants, p)

	if err := s.save(ctx, colGiveaways, s.giveaways); err != nil {
		rec.Participants = rec.Participants[:len(rec.Participants)-1]
		return false, err
	}
	return true, nil
}

func (s *Store) GetGiveaway(id int) (GiveawayRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.giveawayIndexLocked(id); i >= 0 {
		return cloneGiveaway(s.giveaways[i]), true
	}
	return GiveawayRecord{}, false
}

func (s *Store) ActiveGiveaways() []GiveawayRecord {
	return s.filterGiveaways(func(g GiveawayRecord) bool { return !g.Ended })
}

func (s *Store) EndedGiveaways() []GiveawayRecord {
	return s.filterGiveaways(func(g GiveawayRecord) bool { return g.Ended })
}

func (s *Store) filterGiveaways(keep func(GiveawayRecord) bool) []GiveawayRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []GiveawayRecord
	for _, g := range s.giveaways {
		if keep(g) {
			out = append(out, cloneGiveaway(g))
		}
	}
	return out
}

func (s *Store) giveawayIndexLocked(id int) int {
	for i := range s.giveaways {
		if s.giveaways[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) nextGiveawayIDLocked() int {
	next := 1
	for _, g := range s.giveaways {
		if g.ID >= next {
			next = g.ID + 1
		}
	}
	return next
}

// cloneGiveaway deep-copies the mutable parts so callers never hold a
// writable reference into the store's collections.
func cloneGiveaway(g GiveawayRecord) GiveawayRecord {
	cp := g
	cp.Participants = append([]Participant(nil), g.Participants...)
	if g.Winner != nil {
		w := *g.Winner
		cp.Winner = &w
	}
	return cp
}

// ---- users ----

// AddUser registers a user for broadcasts. Returns false when the user is
// already known (their name fields are refreshed in memory only).
func (s *Store) AddUser(ctx context.Context, id int64, username, firstName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.users {
		if s.users[i].ID == id {
			s.users[i].Username = username
			s.users[i].FirstName = firstName
			return false, nil
		}
	}
	s.users = append(s.users, UserRecord{ID: id, Username: username, FirstName: firstName, AddedAt: s.clock()})
	if err := s.save(ctx, colUsers, s.users); err != nil {
		s.users = s.users[:len(s.users)-1]
		return false, err
	}
	return true, nil
}

func (s *Store) Users() []UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]UserRecord(nil), s.users...)
}

// ---- suggestions ----

func (s *Store) AddSuggestion(ctx context.Context, fromID int64, username, text string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("%w: suggestion text is required", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := 1
	for _, sg := range s.suggestions {
		if sg.ID >= next {
			next = sg.ID + 1
		}
	}
	rec := SuggestionRecord{
		ID:        next,
		FromID:    fromID,
		Username:  username,
		Text:      strings.TrimSpace(text),
		Status:    SuggestionPending,
		CreatedAt: s.clock(),
	}
	s.suggestions = append(s.suggestions, rec)
	if err := s.save(ctx, colSuggestions, s.suggestions); err != nil {
		s.suggestions = s.suggestions[:len(s.suggestions)-1]
		return 0, err
	}
	return rec.ID, nil
}

func (s *Store) UpdateSuggestionStatus(ctx context.Context, id int, status string) error {
	switch status {
	case SuggestionPending, SuggestionApproved, SuggestionRejected:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.suggestions {
		if s.suggestions[i].ID != id {
			continue
		}
		prev := s.suggestions[i].Status
		s.suggestions[i].Status = status
		if err := s.save(ctx, colSuggestions, s.suggestions); err != nil {
			s.suggestions[i].Status = prev
			return err
		}
		return nil
	}
	return ErrNotFound
}

func (s *Store) PendingSuggestions() []SuggestionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SuggestionRecord
	for _, sg := range s.suggestions {
		if sg.Status == SuggestionPending {
			out = append(out, sg)
		}
	}
	return out
}

// ---- admins ----

func (s *Store) IsAdmin(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.admins {
		if a.ID == id {
			return true
		}
	}
	return false
}

// StaffAbove returns the admins whose role is at least minRole.
func (s *Store) StaffAbove(minRole int) []AdminRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []AdminRecord
	for _, a := range s.admins {
		if a.Role >= minRole {
			out = append(out, a)
		}
	}
	return out
}

func (s *Store) AddAdmin(ctx context.Context, id int64, name string, role int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.admins {
		if a.ID == id {
			return false, nil
		}
	}
	s.admins = append(s.admins, AdminRecord{ID: id, Name: name, Role: role})
	if err := s.save(ctx, colAdmins, s.admins); err != nil {
		s.admins = s.admins[:len(s.admins)-1]
		return false, err
	}
	return true, nil
}

func (s *Store) RemoveAdmin(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, a := range s.admins {
		if a.ID != id {
			continue
		}
		prev := s.admins
		s.admins = append(append([]AdminRecord{}, s.admins[:i]...), s.admins[i+1:]...)
		if err := s.save(ctx, colAdmins, s.admins); err != nil {
			s.admins = prev
			return err
		}
		return nil
	}
	return ErrNotFound
}
