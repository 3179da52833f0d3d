package objectstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

const listResponse = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
<Name>game</Name><Prefix>Build/</Prefix><KeyCount>2</KeyCount><MaxKeys>50</MaxKeys><IsTruncated>false</IsTruncated>
<Contents><Key>Build/game.js</Key><LastModified>2025-01-01T00:00:00.000Z</LastModified><ETag>"a"</ETag><Size>12</Size><StorageClass>STANDARD</StorageClass></Contents>
<Contents><Key>Build/game.wasm</Key><LastModified>2025-01-02T00:00:00.000Z</LastModified><ETag>"b"</ETag><Size>34</Size><StorageClass>STANDARD</StorageClass></Contents>
</ListBucketResult>`

const noSuchKey = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>Build/missing.js</Key><BucketName>game</BucketName><RequestId>1</RequestId></Error>`

// fakeS3 answers the handful of requests the reader makes.
func fakeS3() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/game/" && r.URL.Query().Get("list-type") == "2":
			w.Header().Set("Content-Type", "application/xml")
			_, _ = io.WriteString(w, listResponse)
		case r.URL.Path == "/game/Build/game.js":
			body := "console.log()"
			w.Header().Set("Content-Type", "text/javascript")
			w.Header().Set("Content-Length", "13")
			w.Header().Set("ETag", `"abc"`)
			w.Header().Set("Last-Modified", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Format(http.TimeFormat))
			_, _ = io.WriteString(w, body)
		default:
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, noSuchKey)
		}
	}))
}

func TestMinioReader(t *testing.T) {
	Convey("Given a reader against a fake bucket", t, func() {
		srv := fakeS3()
		defer srv.Close()

		reader, err := NewMinio(Config{
			Endpoint:        strings.TrimPrefix(srv.URL, "http://"),
			AccessKeyID:     "ak",
			SecretAccessKey: "sk",
			Bucket:          "game",
		})
		So(err, ShouldBeNil)
		So(reader.Bucket(), ShouldEqual, "game")
		ctx := context.Background()

		Convey("Get streams an existing object with metadata", func() {
			obj, err := reader.Get(ctx, "Build/game.js")
			So(err, ShouldBeNil)
			defer func() { _ = obj.Body.Close() }()
			So(obj.Size, ShouldEqual, 13)
			body, err := io.ReadAll(obj.Body)
			So(err, ShouldBeNil)
			So(string(body), ShouldEqual, "console.log()")
		})

		Convey("Get of a missing key is ErrNotFound", func() {
			_, err := reader.Get(ctx, "Build/missing.js")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("List returns the objects under the prefix", func() {
			objs, err := reader.List(ctx, "Build/", 50)
			So(err, ShouldBeNil)
			So(objs, ShouldHaveLength, 2)
			So(objs[1].Key, ShouldEqual, "Build/game.wasm")
			So(objs[1].Size, ShouldEqual, 34)
		})

		Convey("List honors the limit", func() {
			objs, err := reader.List(ctx, "Build/", 1)
			So(err, ShouldBeNil)
			So(objs, ShouldHaveLength, 1)
		})
	})

	Convey("Given incomplete settings", t, func() {
		_, err := NewMinio(Config{Endpoint: "x.r2.cloudflarestorage.com"})
		So(errors.Is(err, ErrNotConfigured), ShouldBeTrue)
	})
}
