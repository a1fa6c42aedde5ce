package vector

import (
	"encoding/binary"
	"math"
	"strconv"
	"time"

	domdoc "github.com/kailas-cloud/vecgraph/internal/domain/document"
)

// Hash field names.
const (
	fieldContent = "content"
	fieldURL     = "url"
	fieldCrawlID = "crawl_id"
	fieldTitle   = "title"
	fieldLang    = "lang"
	fieldTS      = "ts"
	fieldVector  = "vector"
)

// payloadFields is everything but the vector.
var payloadFields = []string{fieldContent, fieldURL, fieldCrawlID, fieldTitle, fieldLang, fieldTS}

// buildHashFields converts a domain Document into a flat map[string]string for HSET.
func buildHashFields(doc *domdoc.Document) map[string]string {
	src := doc.Source()
	return map[string]string{
		fieldContent: doc.Content(),
		fieldURL:     src.URL,
		fieldCrawlID: src.CrawlID,
		fieldTitle:   src.Title,
		fieldLang:    src.Language,
		fieldTS:      strconv.FormatInt(doc.CreatedAt().UnixMilli(), 10),
		fieldVector:  vectorToBytes(doc.Vector()),
	}
}

// parseHashFields converts a flat hash map back into a domain Document.
func parseHashFields(id string, m map[string]string) domdoc.Document {
	var ts time.Time
	if ms, err := strconv.ParseInt(m[fieldTS], 10, 64); err == nil {
		ts = time.UnixMilli(ms).UTC()
	}
	var vec []float32
	if raw, ok := m[fieldVector]; ok {
		vec = bytesToVector(raw)
	}
	return domdoc.Reconstruct(id, m[fieldContent], domdoc.Source{
		URL:      m[fieldURL],
		CrawlID:  m[fieldCrawlID],
		Title:    m[fieldTitle],
		Language: m[fieldLang],
	}, vec, ts)
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
