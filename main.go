package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"

	"duskhollow/server/internal/ai"
	"duskhollow/server/internal/telemetry"
	"duskhollow/server/logging"
	"duskhollow/server/logging/sinks"
)

// serverConfig is populated from the environment.
type serverConfig struct {
	Addr           string        `env:"DUSKHOLLOW_ADDR" envDefault:":8080"`
	CatalogPath    string        `env:"DUSKHOLLOW_CATALOG" envDefault:"config/actions/definitions.json"`
	Seed           int64         `env:"DUSKHOLLOW_SEED" envDefault:"0"`
	NPCCount       int           `env:"DUSKHOLLOW_NPC_COUNT" envDefault:"4"`
	QueueCapacity  int           `env:"DUSKHOLLOW_QUEUE_CAPACITY" envDefault:"8"`
	BlockingBudget time.Duration `env:"DUSKHOLLOW_BLOCKING_BUDGET" envDefault:"10s"`
	AIEvalTicks    uint64        `env:"DUSKHOLLOW_AI_EVAL_TICKS" envDefault:"5"`
	LogDebug       bool          `env:"DUSKHOLLOW_LOG_DEBUG" envDefault:"false"`
}

func main() {
	var cfg serverConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	logCfg := logging.DefaultConfig()
	if cfg.LogDebug {
		logCfg.MinimumSeverity = logging.SeverityDebug
	}
	router := logging.NewRouter(logging.SystemClock{}, logCfg, []logging.NamedSink{
		{Name: "console", Sink: sinks.NewConsoleSink(os.Stdout, logCfg.Console)},
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		router.Close(ctx)
	}()

	logger := telemetry.WrapLogger(log.Default())
	metrics := telemetry.NewCounters()

	catalog, err := loadCatalog(cfg.CatalogPath, logger)
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}

	world := newWorld(catalog, router, metrics, cfg.Seed)
	world.queueCfg.Capacity = cfg.QueueCapacity
	world.queueCfg.BlockingBudget = cfg.BlockingBudget
	spawnInitialNPCs(world, cfg.NPCCount, cfg.AIEvalTicks)

	hub := newHub(world, router, metrics, logger)

	stop := make(chan struct{})
	go hub.RunSimulation(stop)
	defer close(stop)

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	http.HandleFunc("/diagnostics", func(w http.ResponseWriter, r *http.Request) {
		stats := router.Stats()
		payload := struct {
			Status        string              `json:"status"`
			ServerTime    int64               `json:"serverTime"`
			Players       []diagnosticsPlayer `json:"players"`
			TickRate      int                 `json:"tickRate"`
			Heartbeat     int64               `json:"heartbeatMillis"`
			Counters      map[string]uint64   `json:"counters"`
			EventsLogged  uint64              `json:"eventsLogged"`
			EventsDropped uint64              `json:"eventsDropped"`
		}{
			Status:        "ok",
			ServerTime:    time.Now().UnixMilli(),
			Players:       hub.DiagnosticsSnapshot(),
			TickRate:      tickRate,
			Heartbeat:     heartbeatInterval.Milliseconds(),
			Counters:      metrics.Snapshot(),
			EventsLogged:  stats.EventsTotal,
			EventsDropped: stats.DroppedTotal,
		}

		data, err := json.Marshal(payload)
		if err != nil {
			http.Error(w, "failed to encode", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	http.HandleFunc("/join", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		join := hub.Join()
		data, err := json.Marshal(join)
		if err != nil {
			http.Error(w, "failed to encode", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		playerID := r.URL.Query().Get("id")
		if playerID == "" {
			http.Error(w, "missing id", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("upgrade failed for %s: %v", playerID, err)
			return
		}

		_, ok := hub.Subscribe(playerID, conn)
		if !ok {
			message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown player")
			conn.WriteMessage(websocket.CloseMessage, message)
			conn.Close()
			return
		}

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				hub.Disconnect(playerID)
				return
			}
			hub.HandleMessage(playerID, payload)
		}
	})

	log.Printf("server listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, nil); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

// spawnInitialNPCs seeds hostile wanderers around the map.
func spawnInitialNPCs(world *World, count int, evalTicks uint64) {
	cfg := ai.Config{
		EvalEveryTicks:   evalTicks,
		DetectRange:      npcDetectRange,
		WanderRadius:     npcWanderRadius,
		WanderWaitMin:    npcWanderWaitMin,
		WanderWaitMax:    npcWanderWaitMax,
		AttackDescriptor: npcAttackDescriptor,
	}
	for i := 0; i < count; i++ {
		x := worldWidth * (0.2 + 0.6*float64(i%4)/4)
		y := worldHeight * (0.2 + 0.6*float64(i/4%4)/4)
		world.SpawnNPC(factionMonsters, mgl64.Vec2{x, y}, cfg)
	}
}
