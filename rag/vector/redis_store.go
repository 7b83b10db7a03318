package vector

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"lodestone/rag"

	"github.com/redis/go-redis/v9"
)

const (
	// Default HNSW build parameters
	defaultEFConstruction = 200
	defaultM              = 16

	// Field names in Redis hash
	fieldText     = "text"
	fieldVector   = "vector"
	fieldMetadata = "metadata"
	fieldSource   = "source"

	// Alias for the KNN distance in search results
	fieldScore = "score"
)

// RedisIndex implements Index on Redis with a RediSearch HNSW index. It is
// the production path: approximate nearest-neighbor search at sub-linear
// query cost, plus persistence for free since entries live in Redis hashes.
type RedisIndex struct {
	client *redis.Client
	config RedisConfig
}

// RedisConfig holds Redis connection and index configuration.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	PoolSize       int
	IndexName      string
	KeyPrefix      string
	VectorDim      int
	EFConstruction int
	M              int
}

// DefaultRedisConfig returns default Redis configuration from environment
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:           getEnvString("REDIS_ADDR", "localhost:6379"),
		Password:       getEnvString("REDIS_PASSWORD", ""),
		DB:             getEnvInt("REDIS_DB", 0),
		PoolSize:       getEnvInt("REDIS_POOL_SIZE", 10),
		IndexName:      getEnvString("VECTOR_INDEX_NAME", "lodestone-knowledge"),
		KeyPrefix:      getEnvString("VECTOR_KEY_PREFIX", "vec:"),
		VectorDim:      GetEmbeddingDimFromEnv(),
		EFConstruction: getEnvInt("HNSW_EF_CONSTRUCTION", defaultEFConstruction),
		M:              getEnvInt("HNSW_M", defaultM),
	}
}

// getEnvString reads a string from environment variable
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// NewRedisIndex connects to Redis and creates the HNSW index if it does not
// exist yet. An existing index is validated against the configured
// dimensionality and metric before being accepted.
func NewRedisIndex(ctx context.Context, cfg RedisConfig) (*RedisIndex, error) {
	if cfg.VectorDim <= 0 {
		return nil, &rag.ConfigurationError{Reason: "vector dimension must be positive"}
	}
	if cfg.IndexName == "" {
		return nil, &rag.ConfigurationError{Reason: "index name is required"}
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "vec:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s := &RedisIndex{client: client, config: cfg}
	if err := s.ensureIndex(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return s, nil
}

// metaKey holds the declared dimensionality and metric of the index, checked
// whenever an existing store is opened. It lives outside the key prefix so
// RediSearch never indexes it.
func (s *RedisIndex) metaKey() string {
	return s.config.IndexName + ":meta"
}

// ensureIndex creates the HNSW vector index if it doesn't exist, or
// validates the persisted layout against the configuration if it does.
func (s *RedisIndex) ensureIndex(ctx context.Context) error {
	meta, err := s.client.HGetAll(ctx, s.metaKey()).Result()
	if err != nil {
		return fmt.Errorf("failed to read index metadata: %w", err)
	}

	if len(meta) > 0 {
		if meta["metric"] != MetricCosine {
			return &rag.ConfigurationError{Reason: "persisted index uses metric " + meta["metric"]}
		}
		dim, err := strconv.Atoi(meta["dimension"])
		if err != nil || dim != s.config.VectorDim {
			return &rag.DimensionMismatchError{Want: s.config.VectorDim, Got: dim}
		}
		return nil
	}

	// FT.CREATE lodestone-knowledge
	//   ON HASH PREFIX 1 "vec:"
	//   SCHEMA vector VECTOR HNSW 10 TYPE FLOAT32 DIM <dim>
	//          DISTANCE_METRIC COSINE EF_CONSTRUCTION 200 M 16
	//          text TEXT source TAG
	_, err = s.client.Do(ctx, "FT.CREATE", s.config.IndexName,
		"ON", "HASH",
		"PREFIX", "1", s.config.KeyPrefix,
		"SCHEMA",
		fieldVector, "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(s.config.VectorDim),
		"DISTANCE_METRIC", "COSINE",
		"EF_CONSTRUCTION", strconv.Itoa(s.config.EFConstruction),
		"M", strconv.Itoa(s.config.M),
		fieldText, "TEXT",
		fieldSource, "TAG",
	).Result()
	if err != nil && !strings.Contains(err.Error(), "Index already exists") {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return s.client.HSet(ctx, s.metaKey(),
		"metric", MetricCosine,
		"dimension", strconv.Itoa(s.config.VectorDim),
	).Err()
}

// Insert stores pre-embedded entries as hashes via a single pipeline. The
// whole batch is validated against the configured dimensionality before any
// write is issued.
func (s *RedisIndex) Insert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if _, err := validateBatch(s.config.VectorDim, entries); err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	for _, e := range entries {
		metadataJSON, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}

		pipe.HSet(ctx, s.config.KeyPrefix+e.ChunkID,
			fieldText, e.Text,
			fieldVector, encodeVector(e.Vector),
			fieldMetadata, metadataJSON,
			fieldSource, e.Metadata[rag.MetadataSourceKey],
		)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert entries: %w", err)
	}
	return nil
}

// encodeVector encodes a float32 vector as the little-endian byte blob
// RediSearch expects for FLOAT32 vector fields.
func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// Search runs a KNN query and returns matches ascending by the cosine
// distance RediSearch reports.
func (s *RedisIndex) Search(ctx context.Context, query []float32, k int) ([]Match, error) {
	if err := validateK(k); err != nil {
		return nil, err
	}
	if len(query) != s.config.VectorDim {
		return nil, &rag.DimensionMismatchError{Want: s.config.VectorDim, Got: len(query)}
	}

	// FT.SEARCH lodestone-knowledge "*=>[KNN 5 @vector $query_vector AS score]"
	//   PARAMS 2 query_vector "<blob>"
	//   RETURN 3 text metadata score
	//   SORTBY score
	//   DIALECT 2
	queryStr := fmt.Sprintf("*=>[KNN %d @%s $query_vector AS %s]", k, fieldVector, fieldScore)

	result, err := s.client.Do(ctx, "FT.SEARCH", s.config.IndexName, queryStr,
		"PARAMS", "2", "query_vector", encodeVector(query),
		"RETURN", "3", fieldText, fieldMetadata, fieldScore,
		"SORTBY", fieldScore,
		"LIMIT", "0", strconv.Itoa(k),
		"DIALECT", "2",
	).Result()
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	return s.parseSearchResults(result)
}

// parseSearchResults parses the FT.SEARCH reply: a count followed by
// (key, fields) pairs.
func (s *RedisIndex) parseSearchResults(result interface{}) ([]Match, error) {
	values, ok := result.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected search result format")
	}
	if len(values) == 0 {
		return []Match{}, nil
	}

	matches := []Match{}
	for i := 1; i+1 < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			continue
		}
		fields, ok := values[i+1].([]interface{})
		if !ok {
			continue
		}

		match := Match{Entry: Entry{
			ChunkID: strings.TrimPrefix(key, s.config.KeyPrefix),
		}}
		for j := 0; j+1 < len(fields); j += 2 {
			name, ok := fields[j].(string)
			if !ok {
				continue
			}
			value, ok := fields[j+1].(string)
			if !ok {
				continue
			}

			switch name {
			case fieldText:
				match.Entry.Text = value
			case fieldMetadata:
				_ = json.Unmarshal([]byte(value), &match.Entry.Metadata)
			case fieldScore:
				if dist, err := strconv.ParseFloat(value, 32); err == nil {
					match.Distance = float32(dist)
				}
			}
		}

		matches = append(matches, match)
	}

	return matches, nil
}

// Delete removes an entry by its chunk ID.
func (s *RedisIndex) Delete(ctx context.Context, chunkID string) error {
	if chunkID == "" {
		return fmt.Errorf("chunk ID cannot be empty")
	}
	return s.client.Del(ctx, s.config.KeyPrefix+chunkID).Err()
}

// DeleteBySource removes every entry stamped with the given source and
// returns the number of deleted entries. Used when a document is re-ingested
// or retired.
func (s *RedisIndex) DeleteBySource(ctx context.Context, source string) (int, error) {
	if source == "" {
		return 0, fmt.Errorf("source cannot be empty")
	}

	query := fmt.Sprintf("@%s:{%s}", fieldSource, escapeTagValue(source))
	result, err := s.client.Do(ctx, "FT.SEARCH", s.config.IndexName, query,
		"NOCONTENT",
		"LIMIT", "0", "10000",
	).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to find entries by source: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) < 2 {
		return 0, nil
	}

	keys := make([]string, 0, len(values)-1)
	for _, v := range values[1:] {
		if key, ok := v.(string); ok {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return 0, nil
	}

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("failed to delete entries: %w", err)
	}
	return len(keys), nil
}

// escapeTagValue escapes the punctuation RediSearch treats as TAG syntax.
func escapeTagValue(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch r {
		case ',', '.', '<', '>', '{', '}', '[', ']', '"', '\'', ':', ';',
			'!', '@', '#', '$', '%', '^', '&', '*', '(', ')', '-', '+',
			'=', '~', '|', '/', ' ', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Count returns the number of indexed entries, read from FT.INFO.
func (s *RedisIndex) Count(ctx context.Context) (int64, error) {
	info, err := s.client.Do(ctx, "FT.INFO", s.config.IndexName).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get index info: %w", err)
	}

	values, ok := info.([]interface{})
	if !ok {
		return 0, fmt.Errorf("unexpected info format")
	}
	for i := 0; i+1 < len(values); i += 2 {
		if key, ok := values[i].(string); ok && key == "num_docs" {
			switch v := values[i+1].(type) {
			case int64:
				return v, nil
			case string:
				n, _ := strconv.ParseInt(v, 10, 64)
				return n, nil
			}
		}
	}

	return 0, nil
}

// Close closes the Redis connection.
func (s *RedisIndex) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
