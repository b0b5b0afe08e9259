// Package integration starts throwaway postgres and kafka containers for tests
// built with the integration tag.
package integration

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

type Env struct {
	PG    *postgres.PostgresContainer
	Kafka *kafka.KafkaContainer
	PGURL string
	KAddr []string
}

// StartPostgres runs only the database container.
func StartPostgres(ctx context.Context) (*Env, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("orderly"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, err
	}

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = testcontainers.TerminateContainer(pgC)
		return nil, err
	}
	return &Env{PG: pgC, PGURL: pgURL}, nil
}

// Setup runs postgres and a single-node kafka broker.
func Setup(ctx context.Context) (*Env, error) {
	env, err := StartPostgres(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	kafkaC, err := kafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		kafka.WithClusterID("orderly-test"),
	)
	if err != nil {
		env.Teardown()
		return nil, err
	}
	env.Kafka = kafkaC

	env.KAddr, err = kafkaC.Brokers(ctx)
	if err != nil {
		env.Teardown()
		return nil, err
	}
	return env, nil
}

func (e *Env) Teardown() {
	if e.Kafka != nil {
		_ = testcontainers.TerminateContainer(e.Kafka)
	}
	if e.PG != nil {
		_ = testcontainers.TerminateContainer(e.PG)
	}
}
