package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistant-api/assistant-api/pkg/llms"
)

func TestAppendAndHistory(t *testing.T) {
	m := NewManager()

	assert.Empty(t, m.History("telegram", "u1"))

	m.Append("telegram", "u1", llms.Message{Role: llms.RoleUser, Content: "hi"})
	m.Append("telegram", "u1", llms.Message{Role: llms.RoleAssistant, Content: "hello"})
	m.Append("whatsapp", "u1", llms.Message{Role: llms.RoleUser, Content: "hola"})

	turns := m.History("telegram", "u1")
	require.Len(t, turns, 2)
	assert.Equal(t, "hi", turns[0].Content)
	assert.Equal(t, "hello", turns[1].Content)

	// Same user on another channel is a separate session.
	assert.Len(t, m.History("whatsapp", "u1"), 1)
	assert.Equal(t, 2, m.Count())
}

func TestTruncateKeepsWindow(t *testing.T) {
	m := NewManager()
	for i := 0; i < 15; i++ {
		m.Append("telegram", "u1", llms.Message{Role: llms.RoleUser, Content: fmt.Sprintf("q%d", i)})
		m.Append("telegram", "u1", llms.Message{Role: llms.RoleAssistant, Content: fmt.Sprintf("a%d", i)})
	}

	m.Truncate("telegram", "u1", 10)

	turns := m.History("telegram", "u1")
	require.Len(t, turns, 20)
	assert.Equal(t, llms.RoleUser, turns[0].Role)
	assert.Equal(t, "q5", turns[0].Content)
	// Most recent user turn survives.
	assert.Equal(t, "q14", turns[len(turns)-2].Content)
}

func TestTruncateBelowWindowIsNoop(t *testing.T) {
	m := NewManager()
	m.Append("telegram", "u1", llms.Message{Role: llms.RoleUser, Content: "hi"})
	m.Append("telegram", "u1", llms.Message{Role: llms.RoleAssistant, Content: "hello"})

	m.Truncate("telegram", "u1", 10)

	assert.Len(t, m.History("telegram", "u1"), 2)
}

func TestTruncateNeverOpensOnAssistantTurn(t *testing.T) {
	m := NewManager()
	// An extra assistant turn at the front skews the alternation.
	m.Append("telegram", "u1", llms.Message{Role: llms.RoleAssistant, Content: "welcome"})
	for i := 0; i < 3; i++ {
		m.Append("telegram", "u1", llms.Message{Role: llms.RoleUser, Content: fmt.Sprintf("q%d", i)})
		m.Append("telegram", "u1", llms.Message{Role: llms.RoleAssistant, Content: fmt.Sprintf("a%d", i)})
	}

	m.Truncate("telegram", "u1", 2)

	turns := m.History("telegram", "u1")
	require.NotEmpty(t, turns)
	assert.LessOrEqual(t, len(turns), 4)
	assert.Equal(t, llms.RoleUser, turns[0].Role)
	assert.Equal(t, "q2", turns[len(turns)-2].Content)
}

func TestClear(t *testing.T) {
	m := NewManager()
	m.Append("telegram", "u1", llms.Message{Role: llms.RoleUser, Content: "hi"})
	m.Clear("telegram", "u1")

	assert.Empty(t, m.History("telegram", "u1"))
	assert.Equal(t, 0, m.Count())
}

func TestConcurrentAppends(t *testing.T) {
	m := NewManager()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Append("telegram", "u1", llms.Message{Role: llms.RoleUser, Content: "x"})
		}()
	}
	wg.Wait()

	assert.Len(t, m.History("telegram", "u1"), 50)
}
