package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/time/rate"

	"github.com/kashifpk/quranref/app/common"
	"github.com/kashifpk/quranref/app/config"
)

// NewEcho assembles the echo instance with all middleware and routes.
// Split from StartServer so tests can drive it through ServeHTTP.
func NewEcho(controller *Controller, conf *config.QuranConfig, serverConf config.ServerRuntimeConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := http.StatusText(code)

		switch {
		case common.IsParseError(err):
			code = http.StatusBadRequest
			msg = err.Error()
		case common.IsNotFound(err):
			code = http.StatusNotFound
			msg = err.Error()
		default:
			if he, ok := err.(*echo.HTTPError); ok {
				code = he.Code
				if he.Message != nil {
					msg = fmt.Sprintf("%v", he.Message)
				}
			} else if uv, ok := err.(*common.UserVisibleError); ok {
				code = uv.HttpCode
				msg = uv.Message
			} else {
				c.Logger().Error(err)
			}
		}

		if !c.Response().Committed {
			if jsonErr := c.JSON(code, map[string]string{"detail": msg}); jsonErr != nil {
				c.Logger().Error(jsonErr)
			}
		}
	}

	e.Pre(middleware.RemoveTrailingSlash())
	if serverConf.AcmeEnabled {
		e.Pre(middleware.HTTPSRedirect())
	}
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	var identifierExtractor middleware.Extractor
	if serverConf.BehindLoadBalancer {
		identifierExtractor = func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		}
	} else {
		identifierExtractor = func(ctx echo.Context) (string, error) {
			return ctx.Request().RemoteAddr, nil
		}
	}

	if serverConf.RateLimit > 0 {
		rlConfig := middleware.RateLimiterConfig{
			Skipper: middleware.DefaultSkipper,
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(
				middleware.RateLimiterMemoryStoreConfig{
					Rate:      rate.Limit(serverConf.RateLimit),
					Burst:     3 * serverConf.RateLimit,
					ExpiresIn: 3 * time.Minute,
				},
			),
			IdentifierExtractor: identifierExtractor,
			ErrorHandler: func(context echo.Context, err error) error {
				return context.String(http.StatusForbidden, "Forbidden")
			},
			DenyHandler: func(context echo.Context, identifier string, err error) error {
				return context.String(http.StatusTooManyRequests, "Too Many Requests")
			},
		}
		e.Use(middleware.RateLimiterWithConfig(rlConfig))
	}

	if serverConf.GzipLevel != 0 {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{Level: serverConf.GzipLevel, MinLength: 512}))
	}

	if conf.TimeoutSeconds != 0 {
		e.Use(middleware.ContextTimeout(time.Duration(conf.TimeoutSeconds) * time.Second))
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogRemoteIP: true,
		LogLatency:  conf.LogLatency,
		HandleError: true, // forwards error to the global error handler, so it can decide appropriate status code
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				logger.LogAttrs(context.Background(), slog.LevelInfo, "REQUEST",
					slog.String("uri", v.URI),
					slog.Int("status", v.Status),
					slog.Int64("latency_ms", v.Latency.Milliseconds()),
					slog.String("remote_ip", v.RemoteIP),
				)
			} else {
				logger.LogAttrs(context.Background(), slog.LevelError, "REQUEST_ERROR",
					slog.String("uri", v.URI),
					slog.Int("status", v.Status),
					slog.String("err", v.Error.Error()),
					slog.String("remote_ip", v.RemoteIP),
					slog.Int64("latency_ms", v.Latency.Milliseconds()),
				)
			}
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/letters", controller.GetLetters)
	api.GET("/surahs", controller.GetSurahs)
	api.GET("/text-types", controller.GetTextTypes)
	api.GET("/words-by-letter/:letter", controller.GetWordsByLetter)
	api.GET("/ayas-by-word/:word/:languages", controller.GetAyasByWord)
	api.GET("/words-by-count/:count", controller.GetWordsByCount)
	api.GET("/available-word-counts", controller.GetAvailableWordCounts)
	api.GET("/top-most-frequent-words/:limit", controller.GetTopWords)
	api.GET("/text/:ayas_spec/:languages_spec", controller.GetText)
	api.GET("/search/:term/:search_spec/:translations_spec", controller.Search)

	return e
}

func StartServer(controller *Controller, conf *config.QuranConfig, serverConf config.ServerRuntimeConfig) {
	e := NewEcho(controller, conf, serverConf)
	addr := fmt.Sprintf("%s:%d", serverConf.Addr, serverConf.Port)

	if serverConf.CertDir != "" {
		if serverConf.AcmeEnabled {
			slog.Info("using TLS with ACME", "dir", serverConf.CertDir)
			e.AutoTLSManager.HostPolicy = autocert.HostWhitelist(conf.Hostnames...)
			e.AutoTLSManager.Cache = autocert.DirCache(serverConf.CertDir)
			e.Logger.Fatal(e.StartAutoTLS(addr))
		} else {
			slog.Info("using TLS with certDir", "dir", serverConf.CertDir)
			e.Logger.Fatal(e.StartTLS(addr,
				path.Join(serverConf.CertDir, "fullchain.pem"),
				path.Join(serverConf.CertDir, "privkey.pem")))
		}
	} else {
		e.Logger.Fatal(e.Start(addr))
	}
}
