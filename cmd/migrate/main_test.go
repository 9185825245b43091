package main

import (
	"bytes"
	"testing"

	"github.com/geocoder89/attendhub/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDownRejectsNonPositiveSteps(t *testing.T) {
	cmd := newRootCmd(config.Config{DBURL: "postgres://unused"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"down", "--steps", "0"})

	err := cmd.Execute()
	require.EqualError(t, err, "--steps must be positive")
}

func TestSeedAdminNeedsCredentials(t *testing.T) {
	cmd := newRootCmd(config.Config{StoreDriver: config.StoreDriverMemory})
	cmd.SetArgs([]string{"seed-admin"})

	require.Error(t, cmd.Execute())
}

func TestSeedAdminMemory(t *testing.T) {
	cmd := newRootCmd(config.Config{
		StoreDriver:   config.StoreDriverMemory,
		AdminUserName: "root",
		AdminPassword: "pw",
	})
	cmd.SetArgs([]string{"seed-admin"})

	require.NoError(t, cmd.Execute())
}
