package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLaunchAutoSuffixesDuplicateNames(t *testing.T) {
	r := NewRegistry()

	a, err := r.Launch(Config{Port: 6653}, nil, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, DefaultName, a.Name)

	b, err := r.Launch(Config{Port: 6654}, nil, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, DefaultName+"-2", b.Name)

	c, err := r.Launch(Config{Port: 6655}, nil, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, DefaultName+"-3", c.Name)
}

func TestRegistryLaunchExplicitNameCollisionReturnsNil(t *testing.T) {
	r := NewRegistry()

	first, err := r.Launch(Config{Name: "alpha", Port: 6653}, nil, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "alpha", first.Name)

	second, err := r.Launch(Config{Name: "alpha", Port: 6654}, nil, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestRegistryLaunchDistinctExplicitNamesCoexist(t *testing.T) {
	r := NewRegistry()

	a, err := r.Launch(Config{Name: "east", Port: 6653}, nil, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, a)

	b, err := r.Launch(Config{Name: "west", Port: 6654}, nil, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, b)

	assert.NotEqual(t, a.Name, b.Name)
}
