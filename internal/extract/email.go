package extract

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
)

// Email handles RFC 5322 messages (.eml)
type Email struct{}

var emailHeaders = []string{"From", "To", "Cc", "Subject", "Date"}

// Extensions implements Extractor
func (Email) Extensions() []string {
	return []string{".eml"}
}

// Extract implements Extractor
func (Email) Extract(content []byte, filename string) (*Document, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(content))
	if err != nil {
		return nil, corrupt(filename, "failed to parse email file", err)
	}

	dec := new(mime.WordDecoder)
	header := func(name string) string {
		v := msg.Header.Get(name)
		if decoded, err := dec.DecodeHeader(v); err == nil {
			return decoded
		}
		return v
	}

	var b strings.Builder
	b.WriteString("## Email Headers\n\n")
	for _, name := range emailHeaders {
		if v := header(name); v != "" {
			b.WriteString("**" + name + ":** " + v + "\n")
		}
	}

	plain, html := messageBody(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
	body := plain
	if body == "" {
		body = html
	}
	b.WriteString("\n## Email Body\n\n")
	b.WriteString(body)

	return &Document{
		Content:    b.String(),
		SourceType: "email",
		Metadata: map[string]interface{}{
			"subject": header("Subject"),
			"from":    header("From"),
			"date":    header("Date"),
		},
	}, nil
}

// messageBody walks a possibly multipart body and returns the first
// text/plain and text/html parts found
func messageBody(contentType, encoding string, body io.Reader) (plain, html string) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(body, params["boundary"])
		for {
			part, err := mr.NextRawPart()
			if err != nil {
				break
			}
			p, h := messageBody(part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"), part)
			if plain == "" {
				plain = p
			}
			if html == "" {
				html = h
			}
			if plain != "" {
				break
			}
		}
		return plain, html
	}

	data, err := io.ReadAll(transferDecoder(encoding, body))
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", ""
	}
	text := strings.ToValidUTF8(decodeText(data), "�")

	switch mediaType {
	case "text/plain":
		return text, ""
	case "text/html":
		return "", text
	}
	return "", ""
}

func transferDecoder(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	}
	return r
}
