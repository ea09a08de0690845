// internal/store/store.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quizwire/quizwire/internal/models"
)

// Sentinel errors returned by store operations. Handlers translate these
// into private error events; they never reach the room as broadcasts.
var (
	// ErrCodeCollision means the generated game code is already claimed by
	// an active session. The caller regenerates and retries.
	ErrCodeCollision = errors.New("game code already in use")

	// ErrNotFound means no active session exists for the given code.
	ErrNotFound = errors.New("game not found")

	// ErrNotHost means a settings update came from a non-host identity.
	ErrNotHost = errors.New("requester is not the host")

	// ErrAlreadyMaterialized means the question list was set twice. The
	// list is write-once so a running game can never be reshuffled.
	ErrAlreadyMaterialized = errors.New("questions already materialized")

	// ErrBadTransition means a status change violated the lifecycle table.
	ErrBadTransition = errors.New("invalid status transition")
)

// Store is the session state layer over a shared Redis instance. All session
// state lives here, keyed by game code, so any server replica can serve any
// connection. The only concurrency primitives are atomic counter increments
// and append-only list pushes; there is no session-wide lock.
type Store struct {
	rdb *redis.Client
}

// New wraps an existing Redis client.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Connect initializes a Redis client from environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func Connect() (*Store, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return New(rdb), nil
}

// Create claims the given code and initializes the session: default-merged
// settings, status lobby, both counters at zero, empty roster. Returns
// ErrCodeCollision if the code belongs to an active session.
func (s *Store) Create(ctx context.Context, code string, settings models.Settings) error {
	// The status key doubles as the uniqueness claim for the code.
	ok, err := s.rdb.SetNX(ctx, keyStatus(code), string(models.StatusLobby), 0).Result()
	if err != nil {
		return fmt.Errorf("failed to claim game code: %w", err)
	}
	if !ok {
		return ErrCodeCollision
	}

	hostJSON, err := json.Marshal(settings.Host)
	if err != nil {
		return fmt.Errorf("failed to marshal host: %w", err)
	}
	setsJSON, err := json.Marshal(settings.Sets)
	if err != nil {
		return fmt.Errorf("failed to marshal sets: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, keySettings(code),
		"host", string(hostJSON),
		"sets", string(setsJSON),
		"amountOfQuestions", settings.AmountOfQuestions,
		"timePerQuestion", settings.TimePerQuestion,
	)
	pipe.Set(ctx, keyQuestionIndex(code), 0, 0)
	pipe.Set(ctx, keyValidationIndex(code), 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to initialize session %s: %w", code, err)
	}
	return nil
}

// Exists reports whether an active session owns the code.
func (s *Store) Exists(ctx context.Context, code string) (bool, error) {
	n, err := s.rdb.Exists(ctx, keySettings(code)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session %s: %w", code, err)
	}
	return n > 0, nil
}

// AddPlayer adds a player to the roster. Set semantics: adding the same
// identity twice leaves one entry and is not an error.
func (s *Store) AddPlayer(ctx context.Context, code string, p models.Player) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal player: %w", err)
	}
	if err := s.rdb.SAdd(ctx, keyPlayers(code), data).Err(); err != nil {
		return fmt.Errorf("failed to add player to %s: %w", code, err)
	}
	return nil
}

// RemovePlayer removes a player from the roster. Removing an absent player
// is a no-op.
func (s *Store) RemovePlayer(ctx context.Context, code string, p models.Player) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal player: %w", err)
	}
	if err := s.rdb.SRem(ctx, keyPlayers(code), data).Err(); err != nil {
		return fmt.Errorf("failed to remove player from %s: %w", code, err)
	}
	return nil
}

// Players returns the current roster.
func (s *Store) Players(ctx context.Context, code string) ([]models.Player, error) {
	raw, err := s.rdb.SMembers(ctx, keyPlayers(code)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read roster for %s: %w", code, err)
	}
	players := make([]models.Player, 0, len(raw))
	for _, entry := range raw {
		var p models.Player
		if err := json.Unmarshal([]byte(entry), &p); err != nil {
			return nil, fmt.Errorf("corrupt roster entry in %s: %w", code, err)
		}
		players = append(players, p)
	}
	return players, nil
}

// GetSettings reads the session settings. Returns ErrNotFound if the
// session does not exist.
func (s *Store) GetSettings(ctx context.Context, code string) (models.Settings, error) {
	fields, err := s.rdb.HGetAll(ctx, keySettings(code)).Result()
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to read settings for %s: %w", code, err)
	}
	if len(fields) == 0 {
		return models.Settings{}, ErrNotFound
	}

	var settings models.Settings
	if err := json.Unmarshal([]byte(fields["host"]), &settings.Host); err != nil {
		return models.Settings{}, fmt.Errorf("corrupt host in %s: %w", code, err)
	}
	if raw, ok := fields["sets"]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &settings.Sets); err != nil {
			return models.Settings{}, fmt.Errorf("corrupt sets in %s: %w", code, err)
		}
	}
	settings.AmountOfQuestions, _ = strconv.Atoi(fields["amountOfQuestions"])
	settings.TimePerQuestion, _ = strconv.Atoi(fields["timePerQuestion"])
	return settings, nil
}

// UpdateSettings merges a partial update into the stored settings. The
// requester must be the host captured at creation; the host field itself is
// never touched, regardless of what the caller supplies.
func (s *Store) UpdateSettings(ctx context.Context, code string, patch models.SettingsPatch, requesterID string) (models.Settings, error) {
	current, err := s.GetSettings(ctx, code)
	if err != nil {
		return models.Settings{}, err
	}
	if current.Host.ID != requesterID {
		return models.Settings{}, ErrNotHost
	}

	fields := map[string]interface{}{}
	if patch.Sets != nil {
		setsJSON, err := json.Marshal(*patch.Sets)
		if err != nil {
			return models.Settings{}, fmt.Errorf("failed to marshal sets: %w", err)
		}
		fields["sets"] = string(setsJSON)
		current.Sets = *patch.Sets
	}
	if patch.AmountOfQuestions != nil {
		fields["amountOfQuestions"] = *patch.AmountOfQuestions
		current.AmountOfQuestions = *patch.AmountOfQuestions
	}
	if patch.TimePerQuestion != nil {
		fields["timePerQuestion"] = *patch.TimePerQuestion
		current.TimePerQuestion = *patch.TimePerQuestion
	}
	if len(fields) == 0 {
		return current, nil
	}
	if err := s.rdb.HSet(ctx, keySettings(code), fields).Err(); err != nil {
		return models.Settings{}, fmt.Errorf("failed to update settings for %s: %w", code, err)
	}
	return current, nil
}

// Status returns the persisted lifecycle phase.
func (s *Store) Status(ctx context.Context, code string) (models.Status, error) {
	raw, err := s.rdb.Get(ctx, keyStatus(code)).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read status for %s: %w", code, err)
	}
	return models.Status(raw), nil
}

// SetStatus moves the session to the next phase, enforcing the transition
// table. Setting the status a session already has is a no-op success: a
// tick that failed between its status write and its remaining writes must
// be able to rerun cleanly on the next interval. Only the single active
// scheduler for a session calls this, so the read-check-write is not raced
// in practice.
func (s *Store) SetStatus(ctx context.Context, code string, next models.Status) error {
	current, err := s.Status(ctx, code)
	if err != nil {
		return err
	}
	if current == next {
		return nil
	}
	if !current.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, current, next)
	}
	if err := s.rdb.Set(ctx, keyStatus(code), string(next), redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("failed to set status for %s: %w", code, err)
	}
	return nil
}

// QuestionIndex returns the shared question progress counter.
func (s *Store) QuestionIndex(ctx context.Context, code string) (int, error) {
	return s.getCounter(ctx, keyQuestionIndex(code))
}

// IncrQuestionIndex atomically advances the question counter and returns the
// new value. This increment is the store's only ordering primitive for the
// question phase.
func (s *Store) IncrQuestionIndex(ctx context.Context, code string) (int, error) {
	n, err := s.rdb.Incr(ctx, keyQuestionIndex(code)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment question index for %s: %w", code, err)
	}
	return int(n), nil
}

// ValidationIndex returns the shared answer-reveal progress counter.
func (s *Store) ValidationIndex(ctx context.Context, code string) (int, error) {
	return s.getCounter(ctx, keyValidationIndex(code))
}

// SetValidationIndex seeds the validation counter when the reveal phase
// begins.
func (s *Store) SetValidationIndex(ctx context.Context, code string, idx int) error {
	if err := s.rdb.Set(ctx, keyValidationIndex(code), idx, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("failed to set validation index for %s: %w", code, err)
	}
	return nil
}

// IncrValidationIndex atomically advances the validation counter and returns
// the new value.
func (s *Store) IncrValidationIndex(ctx context.Context, code string) (int, error) {
	n, err := s.rdb.Incr(ctx, keyValidationIndex(code)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment validation index for %s: %w", code, err)
	}
	return int(n), nil
}

func (s *Store) getCounter(ctx context.Context, key string) (int, error) {
	raw, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter %s: %w", key, err)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("corrupt counter %s: %w", key, err)
	}
	return n, nil
}

// MaterializeQuestions stores the ordered question list for a session.
// Write-once: a second call fails with ErrAlreadyMaterialized so a running
// game can never be reshuffled mid-flight.
func (s *Store) MaterializeQuestions(ctx context.Context, code string, questions []models.Question) error {
	n, err := s.rdb.Exists(ctx, keyQuestions(code)).Result()
	if err != nil {
		return fmt.Errorf("failed to check questions for %s: %w", code, err)
	}
	if n > 0 {
		return ErrAlreadyMaterialized
	}

	serialized := make([]interface{}, 0, len(questions))
	for _, q := range questions {
		data, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("failed to marshal question: %w", err)
		}
		serialized = append(serialized, data)
	}
	if err := s.rdb.RPush(ctx, keyQuestions(code), serialized...).Err(); err != nil {
		return fmt.Errorf("failed to store questions for %s: %w", code, err)
	}
	return nil
}

// QuestionCount returns the length of the materialized question list.
func (s *Store) QuestionCount(ctx context.Context, code string) (int, error) {
	n, err := s.rdb.LLen(ctx, keyQuestions(code)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count questions for %s: %w", code, err)
	}
	return int(n), nil
}

// QuestionAt returns the question at the given position, or ok=false when
// the position is past the end of the list.
func (s *Store) QuestionAt(ctx context.Context, code string, idx int) (models.Question, bool, error) {
	raw, err := s.rdb.LIndex(ctx, keyQuestions(code), int64(idx)).Result()
	if err == redis.Nil {
		return models.Question{}, false, nil
	}
	if err != nil {
		return models.Question{}, false, fmt.Errorf("failed to read question %d for %s: %w", idx, code, err)
	}
	var q models.Question
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return models.Question{}, false, fmt.Errorf("corrupt question %d in %s: %w", idx, code, err)
	}
	return q, true, nil
}

// AppendAnswer records a player's submission under the given question index.
// Append-only: duplicates from the same player are both retained.
func (s *Store) AppendAnswer(ctx context.Context, code string, questionIndex int, a models.Answer) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}
	if err := s.rdb.RPush(ctx, keyAnswers(code, questionIndex), data).Err(); err != nil {
		return fmt.Errorf("failed to append answer for %s q%d: %w", code, questionIndex, err)
	}
	return nil
}

// Answers returns every submission recorded for a question index, in arrival
// order.
func (s *Store) Answers(ctx context.Context, code string, questionIndex int) ([]models.Answer, error) {
	raw, err := s.rdb.LRange(ctx, keyAnswers(code, questionIndex), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read answers for %s q%d: %w", code, questionIndex, err)
	}
	answers := make([]models.Answer, 0, len(raw))
	for _, entry := range raw {
		var a models.Answer
		if err := json.Unmarshal([]byte(entry), &a); err != nil {
			return nil, fmt.Errorf("corrupt answer in %s q%d: %w", code, questionIndex, err)
		}
		answers = append(answers, a)
	}
	return answers, nil
}

// AppendVote records a vote for the answer a player gave at a question
// index. Append-only.
func (s *Store) AppendVote(ctx context.Context, code string, questionIndex int, answerOwnerID string, v models.Vote) error {
	if err := s.rdb.RPush(ctx, keyVotes(code, questionIndex, answerOwnerID), string(v)).Err(); err != nil {
		return fmt.Errorf("failed to append vote for %s q%d/%s: %w", code, questionIndex, answerOwnerID, err)
	}
	return nil
}

// Votes returns the votes recorded for a player's answer at a question
// index. Unknown values are dropped rather than failing the read.
func (s *Store) Votes(ctx context.Context, code string, questionIndex int, answerOwnerID string) ([]models.Vote, error) {
	raw, err := s.rdb.LRange(ctx, keyVotes(code, questionIndex, answerOwnerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read votes for %s q%d/%s: %w", code, questionIndex, answerOwnerID, err)
	}
	votes := make([]models.Vote, 0, len(raw))
	for _, entry := range raw {
		v := models.Vote(entry)
		if v.Valid() {
			votes = append(votes, v)
		}
	}
	return votes, nil
}

// ExpireNamespace puts a bounded lifetime on every key the session owns, so
// an abandoned session decays instead of accumulating forever.
func (s *Store) ExpireNamespace(ctx context.Context, code string, ttl time.Duration) error {
	return s.forEachKey(ctx, code, func(key string) error {
		return s.rdb.Expire(ctx, key, ttl).Err()
	})
}

// Destroy deletes every key the session owns.
func (s *Store) Destroy(ctx context.Context, code string) error {
	return s.forEachKey(ctx, code, func(key string) error {
		return s.rdb.Del(ctx, key).Err()
	})
}

func (s *Store) forEachKey(ctx context.Context, code string, fn func(key string) error) error {
	iter := s.rdb.Scan(ctx, 0, keyPrefix(code)+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := fn(iter.Val()); err != nil {
			return fmt.Errorf("namespace walk failed for %s: %w", code, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("namespace scan failed for %s: %w", code, err)
	}
	return nil
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
