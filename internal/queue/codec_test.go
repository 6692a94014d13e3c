package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/muaviaUsmani/stampede/internal/request"
)

func TestRecordFraming_RoundTrip(t *testing.T) {
	in := request.New("http://example.com/a", "app", "crawl", "spider", 7)
	in.Headers = map[string][]string{"Accept": {"text/html", "text/plain"}}
	in.Body = []byte("body-bytes")
	in.Cookies = map[string]string{"sid": "1"}
	in.Encoding = "utf-8"
	in.DontFilter = true
	in.Callback = "parse"
	in.Errback = "fail"

	data, err := encodeRecord(in)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if data[0] != frameJSON {
		t.Fatalf("expected JSON frame marker, got 0x%02x", data[0])
	}

	out, err := decodeRecord(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if out.URL != in.URL || out.Method != in.Method || out.Priority != in.Priority {
		t.Errorf("core fields did not round-trip: %+v", out)
	}
	if !out.DontFilter || out.Callback != "parse" || out.Errback != "fail" {
		t.Errorf("flags did not round-trip: %+v", out)
	}
	if string(out.Body) != "body-bytes" {
		t.Errorf("body did not round-trip: %q", out.Body)
	}
	if out.Cookies["sid"] != "1" {
		t.Errorf("cookies did not round-trip: %v", out.Cookies)
	}
	if len(out.Headers["Accept"]) != 2 {
		t.Errorf("header multimap did not round-trip: %v", out.Headers)
	}
	if out.AppID() != "app" || out.CrawlID() != "crawl" || out.SpiderID() != "spider" {
		t.Errorf("meta did not round-trip: %v", out.Meta)
	}
	if out.MetaPriority() != 7 {
		t.Errorf("meta priority did not round-trip: %d", out.MetaPriority())
	}
}

func TestDecodeRecord_LegacyBareJSON(t *testing.T) {
	out, err := decodeRecord([]byte(`{"url":"http://example.com/","method":"GET","priority":3}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out.URL != "http://example.com/" || out.Priority != 3 {
		t.Errorf("legacy decode wrong: %+v", out)
	}
}

func TestDecodeRecord_StructFrame(t *testing.T) {
	// a feeder in another language may write records as a protobuf
	// Struct instead of JSON
	s, err := structpb.NewStruct(map[string]interface{}{
		"url":      "http://example.com/page",
		"method":   "GET",
		"priority": 5,
		"meta": map[string]interface{}{
			"appid":    "foreign-app",
			"crawlid":  "c1",
			"spiderid": "link",
			"expires":  0,
			"priority": 5,
		},
	})
	if err != nil {
		t.Fatalf("struct build failed: %v", err)
	}

	payload, err := proto.Marshal(s)
	if err != nil {
		t.Fatalf("proto marshal failed: %v", err)
	}
	data := append([]byte{frameStruct}, payload...)

	out, err := decodeRecord(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out.URL != "http://example.com/page" || out.Priority != 5 {
		t.Errorf("unexpected record: %+v", out)
	}
	if out.AppID() != "foreign-app" || out.SpiderID() != "link" {
		t.Errorf("meta did not map: %v", out.Meta)
	}
}

func TestDecodeRecord_StructFrameInQueue(t *testing.T) {
	// a struct-framed member seeded directly into the zset pops like
	// any other record
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	s, err := structpb.NewStruct(map[string]interface{}{
		"url":      "http://example.com/struct",
		"method":   "GET",
		"priority": 2,
	})
	if err != nil {
		t.Fatalf("struct build failed: %v", err)
	}
	payload, err := proto.Marshal(s)
	if err != nil {
		t.Fatalf("proto marshal failed: %v", err)
	}

	member := append([]byte{frameStruct}, payload...)
	z := redis.Z{Score: -2, Member: member}
	if err := client.ZAdd(ctx, "s:example.com:queue", z).Err(); err != nil {
		t.Fatalf("zadd failed: %v", err)
	}

	out, err := NewPriorityQueue(client, "s:example.com:queue").Pop(ctx)
	if err != nil {
		t.Fatalf("pop failed: %v", err)
	}
	if out == nil || out.URL != "http://example.com/struct" {
		t.Errorf("unexpected record: %+v", out)
	}
}

func TestDecodeRecord_UnknownFrame(t *testing.T) {
	if _, err := decodeRecord([]byte{0x7f, 0x01}); !errors.Is(err, ErrUnknownRecordFormat) {
		t.Fatalf("expected ErrUnknownRecordFormat, got %v", err)
	}
	if _, err := decodeRecord(nil); !errors.Is(err, ErrUnknownRecordFormat) {
		t.Fatalf("expected ErrUnknownRecordFormat for empty data, got %v", err)
	}
}

func TestDecodeRecord_MalformedPayload(t *testing.T) {
	if _, err := decodeRecord([]byte{frameJSON, 'x'}); !errors.Is(err, ErrBadRecord) {
		t.Fatalf("expected ErrBadRecord, got %v", err)
	}
	if _, err := decodeRecord([]byte{frameStruct, 0xff, 0xff}); !errors.Is(err, ErrBadRecord) {
		t.Fatalf("expected ErrBadRecord for bad struct payload, got %v", err)
	}
}
