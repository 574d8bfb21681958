package simulation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPhaseFor(t *testing.T) {
	cases := []struct {
		elapsed time.Duration
		want    Phase
	}{
		{0, PhaseOpening},
		{4 * time.Minute, PhaseOpening},
		{5 * time.Minute, PhaseExploration},
		{14 * time.Minute, PhaseExploration},
		{15 * time.Minute, PhaseDeepening},
		{29 * time.Minute, PhaseDeepening},
		{30 * time.Minute, PhaseClosing},
		{2 * time.Hour, PhaseClosing},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, PhaseFor(tc.elapsed), "elapsed %s", tc.elapsed)
	}
}

func TestTalkRatio(t *testing.T) {
	messages := []Turn{
		{Role: RoleCoach, Content: wordString(100)},
		{Role: RoleClient, Content: wordString(300)},
	}

	coach, client := TalkRatio(messages)
	assert.Equal(t, 25, coach)
	assert.Equal(t, 75, client)
	assert.Equal(t, 100, coach+client)
}

func TestTalkRatioEmpty(t *testing.T) {
	coach, client := TalkRatio(nil)
	assert.Equal(t, 0, coach)
	assert.Equal(t, 0, client)
}

func TestTalkRatioRounding(t *testing.T) {
	messages := []Turn{
		{Role: RoleCoach, Content: wordString(1)},
		{Role: RoleClient, Content: wordString(2)},
	}

	coach, client := TalkRatio(messages)
	assert.Equal(t, 33, coach)
	assert.Equal(t, 67, client)
}

func wordString(n int) string {
	words := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		words = append(words, 'w', ' ')
	}
	return string(words)
}
