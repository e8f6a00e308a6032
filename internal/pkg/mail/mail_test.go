package mail

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSend_NotConfigured(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"disabled", Config{}},
		{"enabled without smtp credentials", Config{Enable: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := New(tc.cfg).Send(Message{To: []string{"a@b.es"}})
			assert.ErrorIs(t, err, ErrNotConfigured)
		})
	}
}

func TestBuildMIME_PlainHTML(t *testing.T) {
	s := New(Config{ReplyTo: "hola@casaflora.example"})
	raw := string(s.buildMIME("tienda@casaflora.example", Message{
		To:      []string{"cliente@example.com"},
		Subject: "Confirmación de tu pedido CF-1042",
		HTML:    "<p>Gracias por tu compra</p>",
	}))

	assert.Contains(t, raw, "From: tienda@casaflora.example\r\n")
	assert.Contains(t, raw, "To: cliente@example.com\r\n")
	assert.Contains(t, raw, "Reply-To: hola@casaflora.example\r\n")
	assert.Contains(t, raw, "Content-Type: text/html; charset=UTF-8\r\n")
	assert.Contains(t, raw, "<p>Gracias por tu compra</p>")
	// non-ASCII subjects must be RFC 2047 encoded
	assert.Contains(t, raw, "Subject: =?UTF-8?")
	assert.NotContains(t, raw, "multipart/mixed")
}

func TestBuildMIME_WithAttachment(t *testing.T) {
	s := New(Config{})
	raw := string(s.buildMIME("tienda@casaflora.example", Message{
		To:      []string{"cliente@example.com"},
		Subject: "Pedido",
		HTML:    "<p>Adjunto</p>",
		Attachments: []Attachment{
			{Filename: "pedido-CF-1042.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 contenido")},
		},
	}))

	assert.Contains(t, raw, "multipart/mixed")
	assert.Contains(t, raw, `Content-Type: application/pdf; name="pedido-CF-1042.pdf"`)
	assert.Contains(t, raw, `Content-Disposition: attachment; filename="pedido-CF-1042.pdf"`)
	assert.Contains(t, raw, "Content-Transfer-Encoding: base64")

	// boundary opens for each part and closes once
	boundary := raw[strings.Index(raw, "boundary=")+10:]
	boundary = boundary[:strings.Index(boundary, `"`)]
	assert.Equal(t, 2, strings.Count(raw, "--"+boundary+"\r\n"))
	assert.Equal(t, 1, strings.Count(raw, "--"+boundary+"--"))
}

func TestEncodeAttachment_WrapsAt76(t *testing.T) {
	encoded := encodeAttachment(bytes.Repeat([]byte{0xAB}, 200))
	for _, line := range strings.Split(strings.TrimRight(encoded, "\r\n"), "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}
}
