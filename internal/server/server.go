// Package server assembles the gateway's HTTP stack from configuration.
package server

import (
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	gatewayCache "github.com/axiestudio/chatwidget/modules/gateway/infrastructure/cache"
	"github.com/axiestudio/chatwidget/modules/gateway/infrastructure/persistence"
	"github.com/axiestudio/chatwidget/modules/gateway/infrastructure/upstream"
	"github.com/axiestudio/chatwidget/modules/gateway/presentation/controllers"
	"github.com/axiestudio/chatwidget/modules/gateway/services"
	"github.com/axiestudio/chatwidget/pkg/configuration"
	"github.com/axiestudio/chatwidget/pkg/eventbus"
	"github.com/axiestudio/chatwidget/pkg/metrics"
	"github.com/axiestudio/chatwidget/pkg/middleware"
	pkgserver "github.com/axiestudio/chatwidget/pkg/server"
)

type Options struct {
	Configuration *configuration.Configuration
	Pool          *pgxpool.Pool
	Logger        *logrus.Logger
	EventBus      eventbus.EventBus
}

// New wires repositories, the upstream invoker, the gateway service and the
// public controllers into a ready-to-start HTTP server. The returned service
// is exposed so callers can drain pending writes on shutdown.
func New(opts Options) (*pkgserver.HTTPServer, *services.ChatGatewayService) {
	conf := opts.Configuration

	invoker := upstream.NewInvoker(upstream.InvokerConfig{
		Timeout:          conf.Upstream.Timeout,
		MaxInflight:      conf.Upstream.MaxInflight,
		MaxResponseBytes: conf.Upstream.MaxResponseBytes,
	})

	serviceConfig := services.ChatGatewayServiceConfig{
		ProfileRepo: persistence.NewChatProfileRepository(),
		MessageRepo: persistence.NewMessageRepository(),
		Invoker:     invoker,
		EventBus:    opts.EventBus,
	}
	if conf.ReplyCache.Enabled {
		serviceConfig.Cache = gatewayCache.NewRedisCache(
			redis.NewClient(&redis.Options{Addr: conf.RedisURL}),
			conf.ReplyCache.Prefix,
			conf.ReplyCache.TTL,
		)
	}
	service := services.NewChatGatewayService(serviceConfig)

	widgetMiddlewares := []mux.MiddlewareFunc{}
	if conf.RateLimit.Enabled {
		widgetMiddlewares = append(widgetMiddlewares, middleware.RateLimit(conf.RateLimit.PerMinute))
	}

	serverControllers := []pkgserver.Controller{
		controllers.NewHealthController(),
		controllers.NewWidgetAPIController(controllers.WidgetAPIControllerConfig{
			Service:     service,
			Middlewares: widgetMiddlewares,
		}),
	}
	if conf.Prometheus.Enabled {
		serverControllers = append(serverControllers, metrics.NewPrometheusController(conf.Prometheus.Path))
	}

	srv := &pkgserver.HTTPServer{
		Controllers: serverControllers,
		Middlewares: []mux.MiddlewareFunc{
			middleware.WithPool(opts.Pool),
			middleware.WithLogger(opts.Logger),
		},
		CORS: cors.New(cors.Options{
			AllowedOrigins: conf.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", conf.RequestIDHeader},
		}),
	}
	return srv, service
}
