package evalsvc

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/bigdataia/gaia-etl/internal/dbstore"
)

// Store is the slice of the relational store the service reads and writes.
type Store interface {
	ListTaskIDs(ctx context.Context) ([]string, error)
	GetFeature(ctx context.Context, taskID string) (*dbstore.Feature, error)
	GetAnnotation(ctx context.Context, taskID string) (*dbstore.Annotation, error)
	PageText(ctx context.Context, backend, fileName string) (string, error)
	InsertAnalytics(ctx context.Context, rec *dbstore.AnalyticsRecord) (int64, error)
	SetFeedback(ctx context.Context, id int64, feedback string) error
	MarkCorrect(ctx context.Context, id int64, correct bool) error
	ListAnalytics(ctx context.Context) ([]dbstore.AnalyticsRecord, error)
	CreateUser(ctx context.Context, u *dbstore.User) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*dbstore.User, error)
	StoreToken(ctx context.Context, userID int64, token string) error
}

var _ Store = (*dbstore.Store)(nil)

// Server is the evaluation HTTP service.
type Server struct {
	store     Store
	llm       LLM
	jwtSecret string
	log       zerolog.Logger
}

func NewServer(store Store, llm LLM, jwtSecret string, log zerolog.Logger) *Server {
	return &Server{
		store:     store,
		llm:       llm,
		jwtSecret: jwtSecret,
		log:       log,
	}
}

// Routes builds the handler chain. Everything except register and login
// sits behind bearer auth.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /login", s.handleLogin)

	protected := http.NewServeMux()
	protected.HandleFunc("GET /listprompts", s.handleListPrompts)
	protected.HandleFunc("GET /loadprompt/{task_id}", s.handleLoadPrompt)
	protected.HandleFunc("GET /getannotation/{task_id}", s.handleGetAnnotation)
	protected.HandleFunc("POST /querygpt", s.handleQueryGPT)
	protected.HandleFunc("POST /feedback", s.handleFeedback)
	protected.HandleFunc("POST /markcorrect", s.handleMarkCorrect)
	protected.HandleFunc("GET /analytics", s.handleAnalytics)
	mux.Handle("/", s.auth(protected))

	var handler http.Handler = mux
	handler = cors(handler)
	handler = recovery(s.log)(handler)
	handler = requestLogger(s.log)(handler)
	return handler
}
