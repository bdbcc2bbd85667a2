package awsbackend

import (
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/transcribestreamingservice"
	"github.com/stretchr/testify/require"
)

func TestToAlternativeMapsTextAndTokenStability(t *testing.T) {
	alt := &transcribestreamingservice.Alternative{
		Transcript: aws.String("hello world"),
		Items: []*transcribestreamingservice.Item{
			{Content: aws.String("hello"), Stable: aws.Bool(true), StartTime: aws.Float64(0.1), EndTime: aws.Float64(0.4)},
			{Content: aws.String("world"), Stable: aws.Bool(false), StartTime: aws.Float64(0.4), EndTime: aws.Float64(0.8)},
		},
	}

	got := toAlternative(alt)
	require.Equal(t, "hello world", got.Text)
	require.Len(t, got.Tokens, 2)
	require.True(t, got.Tokens[0].Stable)
	require.False(t, got.Tokens[1].Stable)
	require.Equal(t, 0.1, got.Tokens[0].StartTime)
	require.Equal(t, 0.8, got.Tokens[1].EndTime)
}

func TestToAlternativeTreatsUnsetStableAsUnstable(t *testing.T) {
	alt := &transcribestreamingservice.Alternative{
		Transcript: aws.String("partial"),
		Items: []*transcribestreamingservice.Item{
			{Content: aws.String("partial")},
		},
	}

	got := toAlternative(alt)
	require.False(t, got.Tokens[0].Stable)
}

func TestToAlternativeEmptyItems(t *testing.T) {
	alt := &transcribestreamingservice.Alternative{Transcript: aws.String("")}
	got := toAlternative(alt)
	require.Empty(t, got.Text)
	require.Empty(t, got.Tokens)
}
