package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/research-relay/internal/client/conversation"
)

func TestParseTheme(t *testing.T) {
	theme, err := ParseTheme("")
	require.NoError(t, err)
	assert.True(t, theme.Dark)

	theme, err = ParseTheme("Light")
	require.NoError(t, err)
	assert.False(t, theme.Dark)

	_, err = ParseTheme("solarized")
	assert.Error(t, err)
}

func TestParagraphs(t *testing.T) {
	assert.Equal(t, []string{"one", "two\nlines", "three"}, Paragraphs("one\n\ntwo\nlines\n\n\n\nthree\n"))
	assert.Nil(t, Paragraphs("  \n\n "))
}

func TestPlainMessage(t *testing.T) {
	r, err := New(Theme{}, WithPlain(true))
	require.NoError(t, err)

	out, err := r.Message(conversation.Message{Text: "First.\n\nSecond.", SenderName: "Assistant", Timestamp: "10:30"})
	require.NoError(t, err)
	assert.Equal(t, "[10:30] Assistant:\nFirst.\n\nSecond.\n", out)

	out, err = r.Message(conversation.Message{Text: "q", IsUser: true, SenderName: "You", Timestamp: "10:29"})
	require.NoError(t, err)
	assert.Equal(t, "[10:29] You:\nq\n", out)
}

func TestStyledMessageKeepsText(t *testing.T) {
	for _, theme := range []Theme{{Dark: true}, {Dark: false}} {
		r, err := New(theme, WithWidth(60))
		require.NoError(t, err)

		out, err := r.Message(conversation.Message{Text: "Paris is the capital.\n\nIt is in France.", SenderName: "Assistant", Timestamp: "08:00"})
		require.NoError(t, err)
		assert.Contains(t, out, "Assistant")
		assert.Contains(t, out, "Paris")
		assert.Contains(t, out, "France")
	}
}

func TestPrinterRendersFinishedMessagesOnce(t *testing.T) {
	r, err := New(Theme{}, WithPlain(true))
	require.NoError(t, err)

	var buf bytes.Buffer
	p := NewPrinter(r, &buf)

	msgs := []conversation.Message{
		{Text: "q", IsUser: true, SenderName: "You", Timestamp: "09:00"},
		{SenderName: "Assistant", Timestamp: "09:00"},
	}
	require.NoError(t, p.Sync(msgs, true))
	assert.Empty(t, buf.String())

	msgs[1].Text = "abcdefghi\n"
	require.NoError(t, p.Sync(msgs, false))
	assert.Empty(t, buf.String(), "last message may still grow")

	msgs[1].Text += "jk"
	require.NoError(t, p.Sync(msgs, true))
	require.NoError(t, p.Sync(msgs, true))
	assert.Equal(t, "[09:00] Assistant:\nabcdefghi\njk\n", buf.String())
}

func TestPrinterSkipsUnansweredTurn(t *testing.T) {
	r, err := New(Theme{}, WithPlain(true))
	require.NoError(t, err)

	var buf bytes.Buffer
	p := NewPrinter(r, &buf)

	msgs := []conversation.Message{
		{Text: "q1", IsUser: true, SenderName: "You", Timestamp: "09:00"},
		{SenderName: "Assistant", Timestamp: "09:00"},
		{Text: "q2", IsUser: true, SenderName: "You", Timestamp: "09:01"},
		{Text: "second answer", SenderName: "Assistant", Timestamp: "09:01"},
	}
	require.NoError(t, p.Sync(msgs, true))
	assert.Equal(t, "[09:01] Assistant:\nsecond answer\n", buf.String())
}

func TestStyledPrinterRendersWholeMessage(t *testing.T) {
	r, err := New(Theme{Dark: true})
	require.NoError(t, err)

	var buf bytes.Buffer
	p := NewPrinter(r, &buf)

	msgs := []conversation.Message{
		{Text: "q", IsUser: true, SenderName: "You", Timestamp: "09:00"},
		{Text: "first part\n\nsecond part", SenderName: "Assistant", Timestamp: "09:00"},
	}
	require.NoError(t, p.Sync(msgs, true))

	want, err := r.Message(msgs[1])
	require.NoError(t, err)
	assert.Equal(t, want, buf.String())
}
