package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMIME(t *testing.T) {
	raw, err := BuildMIME(Message{
		From:    "soporte@localhost",
		ReplyTo: "noreply@localhost",
		To:      []string{"ana@soporte.test"},
		Cc:      []string{"laura@acme.test"},
		Subject: "Aviso de tarea",
		Text:    "cuerpo en texto",
		HTML:    "<p>cuerpo en html</p>",
	})
	require.NoError(t, err)

	out := string(raw)
	assert.Contains(t, out, "From: <soporte@localhost>")
	assert.Contains(t, out, "Reply-To: <noreply@localhost>")
	assert.Contains(t, out, "To: <ana@soporte.test>")
	assert.Contains(t, out, "Cc: <laura@acme.test>")
	assert.Contains(t, out, "Subject: Aviso de tarea")
	assert.Contains(t, out, "text/plain")
	assert.Contains(t, out, "text/html")
	assert.Contains(t, out, "cuerpo en texto")
	assert.Contains(t, out, "cuerpo en html")
}

func TestBuildMIMEWithAttachment(t *testing.T) {
	raw, err := BuildMIME(Message{
		To:      []string{"ana@soporte.test"},
		Subject: "Con adjunto",
		Text:    "ver adjunto",
		Attachments: []Attachment{
			{Filename: "log.txt", ContentType: "text/plain", Data: []byte("linea")},
		},
	})
	require.NoError(t, err)

	out := string(raw)
	assert.Contains(t, out, "multipart/mixed")
	assert.Contains(t, out, "log.txt")
}
