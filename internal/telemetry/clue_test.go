package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"goa.design/clue/log"

	"github.com/parlant-engine/convengine/internal/correlation"
)

func TestKVToClueConvertsPairs(t *testing.T) {
	fs := kvToClue([]any{"session_id", "s1", "offset", 3})
	require.Len(t, fs, 2)
	assert.Equal(t, log.KV{K: "session_id", V: "s1"}, fs[0])
	assert.Equal(t, log.KV{K: "offset", V: 3}, fs[1])
}

func TestKVToClueSkipsNonStringKeys(t *testing.T) {
	fs := kvToClue([]any{42, "value"})
	assert.Empty(t, fs)
}

func TestKVToClueHandlesOddLengthTrailingKey(t *testing.T) {
	fs := kvToClue([]any{"key_only"})
	require.Len(t, fs, 1)
	assert.Equal(t, log.KV{K: "key_only", V: nil}, fs[0])
}

func TestFieldersPrependsMessage(t *testing.T) {
	fs := fielders(context.Background(), "something happened", []any{"k", "v"})
	require.Len(t, fs, 2)
	assert.Equal(t, log.KV{K: "msg", V: "something happened"}, fs[0])
	assert.Equal(t, log.KV{K: "k", V: "v"}, fs[1])
}

func TestFieldersIncludesCorrelationIDWhenScopePresent(t *testing.T) {
	ctx := correlation.With(context.Background(), correlation.NewRootWithID("sess1").Push("iteration-0"))
	fs := fielders(ctx, "something happened", nil)
	require.Len(t, fs, 2)
	assert.Equal(t, log.KV{K: "msg", V: "something happened"}, fs[0])
	assert.Equal(t, log.KV{K: "correlation_id", V: "Rsess1::iteration-0"}, fs[1])
}

func TestCorrelationFielderEmptyWhenNoScope(t *testing.T) {
	assert.Empty(t, correlationFielder(context.Background()))
}

func TestTagsToAttrsPairsUpConsecutiveStrings(t *testing.T) {
	attrs := tagsToAttrs([]string{"env", "prod", "region", "us-east"})
	assert.Equal(t, []attribute.KeyValue{
		attribute.String("env", "prod"),
		attribute.String("region", "us-east"),
	}, attrs)
}

func TestTagsToAttrsHandlesOddLengthTrailingTag(t *testing.T) {
	attrs := tagsToAttrs([]string{"env"})
	assert.Equal(t, []attribute.KeyValue{attribute.String("env", "")}, attrs)
}

func TestKVToAttrsTypeSwitchesOnValueType(t *testing.T) {
	attrs := kvToAttrs([]any{
		"s", "text",
		"i", 7,
		"i64", int64(8),
		"f", 1.5,
		"b", true,
		"other", []string{"x"},
	})
	assert.Equal(t, []attribute.KeyValue{
		attribute.String("s", "text"),
		attribute.Int("i", 7),
		attribute.Int64("i64", 8),
		attribute.Float64("f", 1.5),
		attribute.Bool("b", true),
		attribute.String("other", ""),
	}, attrs)
}
