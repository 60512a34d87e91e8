package database

import (
	"context"
	"testing"
	"time"

	"github.com/denosaur/dinosaurs/internal/config"
	"github.com/stretchr/testify/require"
)

func TestConnectMongo_InvalidURI(t *testing.T) {
	_, err := ConnectMongo(context.Background(), "not-a-mongo-uri", time.Second)
	require.Error(t, err)
}

func TestConnect_GivesUpAfterRetries(t *testing.T) {
	old := initialBackoff
	initialBackoff = time.Millisecond
	defer func() { initialBackoff = old }()

	_, err := Connect(context.Background(), config.MongoDBConfig{URI: "not-a-mongo-uri", Timeout: time.Second})
	require.Error(t, err)
	require.Contains(t, err.Error(), "after 5 attempts")
}

func TestConnect_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Connect(ctx, config.MongoDBConfig{URI: "not-a-mongo-uri", Timeout: time.Second})
	require.ErrorIs(t, err, context.Canceled)
}
