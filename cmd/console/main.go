package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"fleetpark/internal/access"
	"fleetpark/internal/alert"
	"fleetpark/internal/config"
	"fleetpark/internal/credstore"
	"fleetpark/internal/domain"
	"fleetpark/internal/identity"
	"fleetpark/internal/notification"
	"fleetpark/internal/session"
)

// console es el shell interactivo sobre la sesion, el guard y el centro de notificaciones.
type console struct {
	identity *identity.Client
	sessions *session.Manager
	guard    *access.Guard
	center   *notification.Center
	board    *alert.Board
	nav      *navigator
}

// navigator recuerda la ruta actual y la imprime en cada cambio.
type navigator struct {
	mu      sync.Mutex
	current string
}

func (n *navigator) GoTo(path string) {
	n.mu.Lock()
	n.current = path
	n.mu.Unlock()
	fmt.Printf("-> %s\n", path)
}

func (n *navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadClientConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	store, closeStore, err := newCredentialStore(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer closeStore()

	board := alert.NewBoard(notification.MaxAlertDuration)
	defer board.Close()
	alerts := alert.Multi{board, alert.NewLogger(logger)}

	nav := &navigator{current: "/"}
	client := identity.NewClient(cfg.IdentityBaseURL, cfg.IdentityTimeout, logger)
	sessions := session.NewManager(logger, client, store, alerts, nav, session.Settings{
		LoginPath:     cfg.LoginPath,
		AlertDuration: cfg.AlertDuration,
	})
	center, err := notification.NewCenter(logger, alerts, notification.DefaultAlertDuration)
	if err != nil {
		log.Fatal(err)
	}

	c := &console{
		identity: client,
		sessions: sessions,
		guard:    access.NewGuard(logger, access.DefaultPolicy(), sessions, nav, cfg.LoginPath, "/unauthorized"),
		center:   center,
		board:    board,
		nav:      nav,
	}

	sessions.Restore(ctx)
	c.printState()

	for {
		fmt.Printf("%s > ", nav.Current())
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			return
		}
		c.run(ctx, args, line)
	}
}

func newCredentialStore(ctx context.Context, cfg *config.ClientConfig, logger *zap.Logger) (session.CredentialStore, func(), error) {
	noop := func() {}
	switch strings.ToLower(cfg.CredentialStore) {
	case "memory":
		return credstore.NewMemory(), noop, nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, noop, fmt.Errorf("REDIS_ADDR required for redis credential store")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		}
		return credstore.NewRedis(client, cfg.CredentialProfile), func() { _ = client.Close() }, nil
	case "file", "":
		store, err := credstore.NewFile(cfg.CredentialFile)
		return store, noop, err
	default:
		return nil, noop, fmt.Errorf("unknown credential store %q", cfg.CredentialStore)
	}
}

func (c *console) run(ctx context.Context, args []string, line string) {
	switch args[0] {
	case "help":
		printHelp()
	case "login":
		if len(args) < 3 {
			fmt.Println("usage: login <email> <password>")
			return
		}
		ok, err := c.sessions.Login(ctx, args[1], args[2])
		if !ok {
			fmt.Printf("login failed: %v\n", err)
			return
		}
		c.printState()
	case "logout":
		c.sessions.Logout(ctx)
	case "whoami":
		c.whoami(ctx)
	case "name":
		if len(args) < 2 {
			fmt.Println("usage: name <display name>")
			return
		}
		name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "name"))
		c.sessions.UpdateUser(domain.UserPatch{DisplayName: &name})
		c.printState()
	case "goto":
		if len(args) < 2 {
			fmt.Println("usage: goto <path>")
			return
		}
		fmt.Println(c.guard.Navigate(args[1]))
	case "notify":
		c.notify(args, line)
	case "list":
		var items []domain.Notification
		if len(args) > 1 {
			items = c.center.ListByType(domain.NotificationType(strings.ToUpper(args[1])))
		} else {
			items = c.center.List()
		}
		printNotifications(items)
	case "read":
		if len(args) < 2 {
			fmt.Println("usage: read <id>")
			return
		}
		c.center.MarkAsRead(args[1])
	case "readall":
		c.center.MarkAllAsRead()
	case "remove":
		if len(args) < 2 {
			fmt.Println("usage: remove <id>")
			return
		}
		c.center.Remove(args[1])
	case "clear":
		c.center.ClearAll()
	case "unread":
		fmt.Printf("%d unread of %d\n", c.center.UnreadCount(), c.center.Len())
	case "alerts":
		for _, a := range c.board.Active() {
			fmt.Printf("[%s] %s: %s (until %s)\n", a.ID[:8], a.Title, a.Message, a.ExpiresAt.Format("15:04:05"))
		}
	default:
		fmt.Println("unknown command, try help")
	}
}

// whoami consulta /auth/me con refresco automatico si el access token vencio.
func (c *console) whoami(ctx context.Context) {
	if !c.sessions.IsAuthenticated() {
		fmt.Println("not signed in")
		return
	}
	var user domain.User
	err := c.sessions.Do(ctx, func(ctx context.Context, accessToken string) error {
		u, err := c.identity.CurrentUser(ctx, accessToken)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		fmt.Printf("whoami failed: %v\n", err)
		return
	}
	fmt.Printf("%s <%s> %s\n", user.DisplayName, user.Email, user.Role)
}

// notify: notify <TYPE> <title> | <message>
func (c *console) notify(args []string, line string) {
	if len(args) < 3 {
		fmt.Println("usage: notify <TYPE> <title> | <message>")
		return
	}
	t := domain.NotificationType(strings.ToUpper(args[1]))
	if !t.Valid() {
		fmt.Printf("unknown notification type %q\n", args[1])
		return
	}
	rest := strings.TrimSpace(line)
	rest = strings.TrimSpace(rest[strings.Index(rest, args[1])+len(args[1]):])
	title, message, _ := strings.Cut(rest, "|")

	var userID string
	var role domain.Role
	if state := c.sessions.State(); state.User != nil {
		userID = state.User.ID
		role = state.User.Role
	}
	n := c.center.Add(t, strings.TrimSpace(title), strings.TrimSpace(message), userID, role, nil)
	fmt.Printf("added %s\n", n.ID)
}

func (c *console) printState() {
	state := c.sessions.State()
	if !state.Authenticated || state.User == nil {
		fmt.Println("session: anonymous")
		return
	}
	fmt.Printf("session: %s (%s)\n", state.User.Email, state.User.Role)
}

func printNotifications(items []domain.Notification) {
	if len(items) == 0 {
		fmt.Println("no notifications")
		return
	}
	for _, n := range items {
		mark := " "
		if !n.Read {
			mark = "*"
		}
		fmt.Printf("%s %s %-22s %s: %s (%s)\n", mark, n.ID, n.Type, n.Title, n.Message, n.Timestamp.Format("15:04:05"))
	}
}

func printHelp() {
	fmt.Println(`commands:
  login <email> <password>    sign in
  logout                      sign out
  whoami                      fetch the current user from the identity API
  name <display name>         update the cached display name
  goto <path>                 navigate through the route guard
  notify <TYPE> <title> | <message>
  list [TYPE]                 list notifications, newest first
  read <id> | readall         mark as read
  remove <id> | clear         delete notifications
  unread                      unread counter
  alerts                      alerts currently on screen
  exit`)
}
