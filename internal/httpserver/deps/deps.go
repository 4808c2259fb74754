package deps

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/shelf/internal/auth"
	"github.com/MrSnakeDoc/shelf/internal/credential"
	"github.com/MrSnakeDoc/shelf/internal/icon"
	"github.com/MrSnakeDoc/shelf/internal/importer"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/session"
	"github.com/MrSnakeDoc/shelf/internal/store/sqlite"
)

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedHosts []string         // Host headers allowed to access the server
	AllowedCIDRS []string         // IPs allowed to access healthz/readyz endpoints
	TrustProxy   bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)

	DB          *sqlite.DB
	RedisClient *redis.Client // nil when sessions are kept in memory

	Bookmarks   *sqlite.BookmarkStore
	Categories  *sqlite.CategoryStore
	Credentials *credential.Store
	Importer    *importer.Importer
	Icons       *icon.Fetcher

	Tokens   *session.Manager
	Sessions session.Registry
	Gate     *auth.Gate

	SessionCookie string
	CookieSecure  bool

	LoginBurst        int
	LoginRefillPerMin int
}
