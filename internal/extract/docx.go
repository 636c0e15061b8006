package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	docxDefaultPart   = "word/document.xml"
	docxContentTypes  = "[Content_Types].xml"
	docxMainPartCType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

type contentTypes struct {
	Overrides []struct {
		PartName    string `xml:"PartName,attr"`
		ContentType string `xml:"ContentType,attr"`
	} `xml:"Override"`
}

// decodeDOCX returns the document body text with one line per paragraph.
func decodeDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open DOCX: %w", err)
	}
	part := docxDefaultPart
	if raw, err := readZipFile(zr, docxContentTypes); err == nil {
		var ct contentTypes
		if xml.Unmarshal(raw, &ct) == nil {
			for _, o := range ct.Overrides {
				if o.ContentType == docxMainPartCType {
					part = strings.TrimPrefix(o.PartName, "/")
					break
				}
			}
		}
	}
	body, err := readZipFile(zr, part)
	if err != nil {
		return "", fmt.Errorf("open DOCX: %w", err)
	}
	return wordprocessingText(body)
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found", name)
}

// wordprocessingText walks WordprocessingML and collects run text. Paragraph ends
// become newlines; tabs and breaks are kept.
func wordprocessingText(doc []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	var b strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse DOCX: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
