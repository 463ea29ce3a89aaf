package fetch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/koch/pkg/koch/internalerr"
	"github.com/cognicore/koch/pkg/koch/pipeline"
)

func TestRewriteURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://example.com/a/b.html", "http://example.com/a/b.html"},
		{"http://example.com/a b?q=1", "http://example.com/a%20b%3Fq%3D1"},
		{"http://example.com/ü", "http://example.com/%C3%BC"},
		{
			"http://web.archive.org/web/20060102150405/http://example.com/",
			"http://web.archive.org/web/20060102150405id_/http://example.com/",
		},
		{
			"http://web.archive.org/web/20060102150405/http://example.com/20070102150405/",
			"http://web.archive.org/web/20060102150405id_/http://example.com/20070102150405/",
		},
		{"http://example.com/20060102150405/", "http://example.com/20060102150405/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RewriteURL(tt.in), tt.in)
	}
}

func TestFilter(t *testing.T) {
	ctx := context.Background()
	src := pipeline.Fixed(
		pipeline.Record[int]{Key: "http://news.example.com/1", Value: 1},
		pipeline.Record[int]{Key: "http://blog.example.com/2", Value: 2},
		pipeline.Record[int]{Key: "", Value: 3},
	)

	keep, err := Filter[int](`http://news\.`)
	require.NoError(t, err)
	got, err := pipeline.Collect[int](ctx, pipeline.Compose(src, keep))
	require.NoError(t, err)
	assert.Equal(t, []pipeline.Record[int]{{Key: "http://news.example.com/1", Value: 1}}, got)

	all, err := Filter[int]("")
	require.NoError(t, err)
	n, err := pipeline.Count[int](ctx, pipeline.Compose(src, all))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "empty keys are dropped without a pattern too")

	_, err = Filter[int]("(")
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}
