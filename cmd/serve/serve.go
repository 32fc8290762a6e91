package serve

import (
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/GouveiaZx/vendeuonline-sub004/cmd/providers"
	"github.com/GouveiaZx/vendeuonline-sub004/pkg/audit"
	"github.com/GouveiaZx/vendeuonline-sub004/pkg/authgw"
	"github.com/GouveiaZx/vendeuonline-sub004/pkg/token"
	"github.com/GouveiaZx/vendeuonline-sub004/pkg/users"
	"github.com/GouveiaZx/vendeuonline-sub004/pkg/web"
)

// HTTP and social login config.
const (
	ConfHTTPCookieSecure   = "http.cookie_secure"
	ConfGoogleClientID     = "google.client_id"
	ConfGoogleClientSecret = "google.client_secret"
	ConfGoogleRedirectURL  = "google.redirect_url"
)

func init() {
	viper.SetDefault(ConfHTTPCookieSecure, true)
	viper.SetDefault(ConfGoogleClientID, "")
	viper.SetDefault(ConfGoogleClientSecret, "")
	viper.SetDefault(ConfGoogleRedirectURL, "")
}

var Cmd = cobra.Command{
	Use:   "serve",
	Short: "Run marketplace API server",
	Long: "Runs the HTTP API server fronted by the auth gateway.\n" +
		"It is safe to load-balance multiple serve instances.",
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		app := providers.NewApp(
			cmd,
			fx.Provide(
				newServeFlags,
				newGoogleOAuth,
				newHandlers,
				newRouter,
			),
			fx.Invoke(runServer),
		)
		app.Run()
	},
}

func init() {
	flags := Cmd.Flags()
	flags.String("net", "tcp", "Listen network (tcp or unix)")
	flags.String("bind", ":8080", "Listen address")
}

type serveFlags struct {
	net  string
	bind string
}

func newServeFlags(cmd *cobra.Command) *serveFlags {
	flags := cmd.Flags()
	netw, err := flags.GetString("net")
	if err != nil {
		panic(err)
	}
	bind, err := flags.GetString("bind")
	if err != nil {
		panic(err)
	}
	return &serveFlags{
		net:  netw,
		bind: bind,
	}
}

func newGoogleOAuth(log *zap.Logger) *web.GoogleOAuth {
	clientID := viper.GetString(ConfGoogleClientID)
	if clientID == "" {
		log.Info("Google login disabled, no client id configured")
		return nil
	}
	return &web.GoogleOAuth{
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: viper.GetString(ConfGoogleClientSecret),
			RedirectURL:  viper.GetString(ConfGoogleRedirectURL),
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
	}
}

func newHandlers(
	log *zap.Logger,
	store *users.Store,
	gate *authgw.Gate,
	issuer *token.Issuer,
	trail audit.Publisher,
	invalidation *authgw.Invalidation,
	oauth *web.GoogleOAuth,
) *web.Handlers {
	return &web.Handlers{
		Users:        store,
		Gate:         gate,
		Issuer:       issuer,
		Audit:        trail,
		Log:          log.Named("web"),
		Inval:        invalidation,
		Google:       oauth,
		CookieSecure: viper.GetBool(ConfHTTPCookieSecure),
	}
}

func newRouter(h *web.Handlers, gate *authgw.Gate) http.Handler {
	return web.NewRouter(h, gate)
}

func runServer(
	lc fx.Lifecycle,
	log *zap.Logger,
	flags *serveFlags,
	router http.Handler,
) {
	sock := providers.MustListen(log, flags.net, flags.bind)
	server := &providers.HTTPServer{
		Server: &http.Server{Handler: router},
	}
	providers.LifecycleServe(log, lc, sock, server)
}
