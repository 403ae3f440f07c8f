package scylla

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/gocql/gocql"

	"campusmarket/internal/infra/config"
)

var keyspacePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// NewSession ensures the schema exists and returns a session bound to the
// configured keyspace.
func NewSession(ctx context.Context, cfg config.Config, logger *slog.Logger) (*gocql.Session, error) {
	if !keyspacePattern.MatchString(cfg.ScyllaKeyspace) {
		return nil, fmt.Errorf("invalid keyspace name: %s", cfg.ScyllaKeyspace)
	}

	baseSession, err := newCluster(cfg, "").CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to scylla: %w", err)
	}
	defer baseSession.Close()
	if err := ensureKeyspace(ctx, baseSession, cfg); err != nil {
		return nil, err
	}

	session, err := newCluster(cfg, cfg.ScyllaKeyspace).CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to keyspace %s: %w", cfg.ScyllaKeyspace, err)
	}
	if err := ensureTables(ctx, session); err != nil {
		session.Close()
		return nil, err
	}
	if logger != nil {
		logger.Info("scylla connected", "hosts", cfg.ScyllaHosts, "keyspace", cfg.ScyllaKeyspace)
	}
	return session, nil
}

func newCluster(cfg config.Config, keyspace string) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(cfg.ScyllaHosts...)
	cluster.Timeout = cfg.ScyllaTimeout
	cluster.ConnectTimeout = cfg.ScyllaTimeout
	cluster.Consistency = cfg.ScyllaConsistency
	cluster.SerialConsistency = gocql.Serial
	if keyspace != "" {
		cluster.Keyspace = keyspace
	}
	if cfg.ScyllaUsername != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.ScyllaUsername,
			Password: cfg.ScyllaPassword,
		}
	}
	return cluster
}

func ensureKeyspace(ctx context.Context, session *gocql.Session, cfg config.Config) error {
	cql := fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}",
		cfg.ScyllaKeyspace, cfg.ReplicationFactor,
	)
	if err := session.Query(cql).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create keyspace: %w", err)
	}
	return nil
}

// Timestamps are stored as unix nanoseconds: CQL timestamps keep only
// milliseconds, which would break (created_at, id) ordering.
var schema = []struct {
	name string
	cql  string
}{
	{"conversation_keys", `CREATE TABLE IF NOT EXISTS conversation_keys (
	participant_low text,
	participant_high text,
	listing_key text,
	conversation_id text,
	PRIMARY KEY ((participant_low, participant_high, listing_key))
)`},
	{"conversations", `CREATE TABLE IF NOT EXISTS conversations (
	id text PRIMARY KEY,
	participant_low text,
	participant_high text,
	listing_key text,
	created_ns bigint,
	updated_ns bigint
)`},
	{"conversations_by_user", `CREATE TABLE IF NOT EXISTS conversations_by_user (
	user_id text,
	conversation_id text,
	PRIMARY KEY (user_id, conversation_id)
)`},
	{"messages", `CREATE TABLE IF NOT EXISTS messages (
	conversation_id text,
	created_ns bigint,
	message_id text,
	sender_id text,
	content text,
	kind text,
	PRIMARY KEY (conversation_id, created_ns, message_id)
) WITH CLUSTERING ORDER BY (created_ns ASC, message_id ASC)`},
	{"orders", `CREATE TABLE IF NOT EXISTS orders (
	id text PRIMARY KEY,
	listing_id text,
	buyer_id text,
	seller_id text,
	amount bigint,
	currency text,
	status text,
	created_ns bigint,
	updated_ns bigint
)`},
	{"orders_by_user", `CREATE TABLE IF NOT EXISTS orders_by_user (
	user_id text,
	order_id text,
	PRIMARY KEY (user_id, order_id)
)`},
}

func ensureTables(ctx context.Context, session *gocql.Session) error {
	for _, table := range schema {
		if err := session.Query(table.cql).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("create %s table: %w", table.name, err)
		}
	}
	return nil
}
