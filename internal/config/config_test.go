package config_test

import (
	"testing"
	"time"

	"github.com/povelc/portfolio/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.MaxScores, convey.ShouldEqual, 20)
			convey.So(cfg.DisplayScores, convey.ShouldEqual, 10)
			convey.So(cfg.RateLimitMaxRequests, convey.ShouldEqual, 100)
			convey.So(cfg.RateLimitWindow, convey.ShouldEqual, time.Minute)
			convey.So(cfg.AllowedOrigins, convey.ShouldContain, "https://povelc.com")
			convey.So(cfg.AssetsPrefix, convey.ShouldEqual, "Build/")
			convey.So(cfg.AssetCacheMaxAge, convey.ShouldEqual, time.Hour)
		})
	})
}

func TestConfig_StorageEndpoint(t *testing.T) {
	convey.Convey("Given storage settings", t, func() {
		cfg := config.New()

		convey.Convey("Without account or endpoint storage is not configured", func() {
			convey.So(cfg.ResolvedStorageEndpoint(), convey.ShouldEqual, "")
			convey.So(cfg.StorageConfigured(), convey.ShouldBeFalse)
		})

		convey.Convey("An account id resolves to the R2 endpoint", func() {
			cfg.StorageAccountID = "abc123"
			cfg.StorageAccessKeyID = "ak"
			cfg.StorageSecretAccessKey = "sk"
			cfg.StorageBucket = "game"
			convey.So(cfg.ResolvedStorageEndpoint(), convey.ShouldEqual, "abc123.r2.cloudflarestorage.com")
			convey.So(cfg.StorageConfigured(), convey.ShouldBeTrue)
		})

		convey.Convey("An explicit endpoint wins", func() {
			cfg.StorageAccountID = "abc123"
			cfg.StorageEndpoint = "localhost:9000"
			convey.So(cfg.ResolvedStorageEndpoint(), convey.ShouldEqual, "localhost:9000")
		})
	})
}
