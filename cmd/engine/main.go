package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-redis/redis"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"gitlab.com/Cacophony/go-kit/api"
	"gitlab.com/Cacophony/go-kit/errortracking"
	"gitlab.com/Cacophony/go-kit/logging"
	"go.uber.org/zap"

	"gitlab.com/AdWatch/Engine/metrics"
	"gitlab.com/AdWatch/Engine/pkg/ads"
	"gitlab.com/AdWatch/Engine/pkg/chat"
	"gitlab.com/AdWatch/Engine/pkg/debounce"
)

const (
	// ServiceName is the name of the service
	ServiceName = "engine"
)

func main() {
	// init config
	var config config
	err := envconfig.Process("", &config)
	if err != nil {
		panic(errors.Wrap(err, "unable to load configuration"))
	}
	config.ErrorTracking.Version = config.Hash
	config.ErrorTracking.Environment = config.ClusterEnvironment

	// init logger
	logger, err := logging.NewLogger(
		config.Environment,
		ServiceName,
		config.LoggingDiscordWebhook,
		&http.Client{
			Timeout: 10 * time.Second,
		},
	)
	if err != nil {
		panic(errors.Wrap(err, "unable to initialise logger"))
	}
	defer logger.Sync() // nolint: errcheck

	// init raven
	err = errortracking.Init(&config.ErrorTracking)
	if err != nil {
		logger.Error("unable to initialise errortracking",
			zap.Error(err),
		)
	}

	// init redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddress,
		Password: config.RedisPassword,
	})
	_, err = redisClient.Ping().Result()
	if err != nil {
		logger.Fatal("unable to connect to Redis",
			zap.Error(err),
		)
	}

	// init GORM
	gormDB, err := gorm.Open("postgres", config.DBDSN)
	if err != nil {
		logger.Fatal("unable to initialise GORM session",
			zap.Error(err),
		)
	}
	defer gormDB.Close()

	// init discord session
	session, err := discordgo.New("Bot " + config.DiscordToken)
	if err != nil {
		logger.Fatal("unable to initialise Discord session",
			zap.Error(err),
		)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	// init engine
	scheduler := debounce.NewScheduler(
		logger.With(zap.String("feature", "debounce")),
	)

	chatClient := chat.NewDiscord(session)

	engine := ads.New(ads.Params{
		Logger:    logger.With(zap.String("feature", "ads")),
		DB:        gormDB,
		Redis:     redisClient,
		Chat:      chatClient,
		Scheduler: scheduler,
		EditDelay: config.EditDebounce,
	})

	err = engine.Start()
	if err != nil {
		logger.Fatal("unable to start engine",
			zap.Error(err),
		)
	}

	registerHandlers(session, engine, chatClient, logger)

	err = session.Open()
	if err != nil {
		logger.Fatal("unable to open Discord session",
			zap.Error(err),
		)
	}
	engine.SetBotUserID(session.State.User.ID)

	// start metrics
	metrics.Init()

	// init reindex schedule
	reindexCron := cron.New()
	_, err = reindexCron.AddFunc(config.ReindexSchedule, func() {
		err := engine.ReindexAll()
		if err != nil {
			logger.Error("scheduled reindex failed",
				zap.Error(err),
			)
		}
	})
	if err != nil {
		logger.Fatal("unable to schedule reindexing",
			zap.Error(err),
		)
	}
	reindexCron.Start()

	if config.ReindexOnStartup {
		go func() {
			err := engine.HandleStartup()
			if err != nil {
				logger.Error("startup reindex failed",
					zap.Error(err),
				)
			}
		}()
	}

	// init http server
	httpRouter := api.NewRouter()
	httpServer := api.NewHTTPServer(config.Port, httpRouter)

	go func() {
		err := httpServer.ListenAndServe()
		if err != http.ErrServerClosed {
			logger.Fatal("http server error",
				zap.Error(err),
				zap.String("feature", "http-server"),
			)
		}
	}()

	logger.Info("service is running",
		zap.Int("port", config.Port),
	)

	// wait for CTRL+C to stop the service
	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-quitChannel

	// shutdown features

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*15)
	defer cancel()

	reindexCron.Stop()
	engine.Stop()

	err = session.Close()
	if err != nil {
		logger.Error("unable to close Discord session",
			zap.Error(err),
		)
	}

	err = httpServer.Shutdown(ctx)
	if err != nil {
		logger.Error("unable to shutdown HTTP Server",
			zap.Error(err),
		)
	}
}

func registerHandlers(session *discordgo.Session, engine *ads.Engine, chatClient chat.Chat, logger *zap.Logger) {
	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		err := engine.HandleMessageCreate(m.Message)
		if err != nil {
			logger.Error("unable to handle message create",
				zap.String("message_id", m.ID),
				zap.Error(err),
			)
		}
	})

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageUpdate) {
		message := m.Message
		if message.Content == "" {
			// gateway edit payloads can be partial, fetch the rest
			fetched, err := chatClient.Message(m.ChannelID, m.ID)
			if err != nil {
				logger.Error("unable to fetch edited message",
					zap.String("message_id", m.ID),
					zap.Error(err),
				)
				return
			}
			message = fetched
		}

		err := engine.HandleMessageEdit(message)
		if err != nil {
			logger.Error("unable to handle message edit",
				zap.String("message_id", m.ID),
				zap.Error(err),
			)
		}
	})

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageDelete) {
		err := engine.HandleMessageDelete(m.GuildID, m.ChannelID, m.ID)
		if err != nil {
			logger.Error("unable to handle message delete",
				zap.String("message_id", m.ID),
				zap.Error(err),
			)
		}
	})

	session.AddHandler(func(s *discordgo.Session, c *discordgo.ChannelDelete) {
		err := engine.HandleChannelDelete(c.ID)
		if err != nil {
			logger.Error("unable to handle channel delete",
				zap.String("channel_id", c.ID),
				zap.Error(err),
			)
		}
	})
}
