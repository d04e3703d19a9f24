package i18n

import (
	"reflect"
	"sync"
)

// Language type
type Language string

const (
	LangEN Language = "en"
	LangPT Language = "pt"
)

// Messages holds all translatable strings
type Messages struct {
	// System
	Starting           string
	ConfigLoaded       string
	UsingDBPath        string
	ShuttingDown       string
	ConfigLoadFailed   string
	DBInitFailed       string
	DBMigrationsFailed string
	SessionLoaded      string
	SessionLoadFailed  string
	APIServerError     string
	EngineStarted      string
	EngineStopped      string
	MetricsInit        string

	// Balance
	BalanceInitialized  string
	BalanceDebited      string
	BalanceCredited     string
	InsufficientBalance string
	BalancePersistError string

	// Feed
	FeedStarted          string
	FeedStopped          string
	MarketFetchFailed    string
	SeriesSeeded         string
	SyntheticSeed        string
	BiasArmed            string
	BiasCleared          string

	// Trades
	TradeOpened        string
	TradeRejected      string
	TradeSettledWin    string
	TradeSettledLoss   string
	SettlementNoPrice  string
	HistoryWriteFailed string

	// Signals
	SignalCreated   string
	SignalFollowed  string
	SignalIgnored   string
	SignalExpired   string
	SignalRejected  string

	// Rank
	RankPromoted string

	// Instruments
	InstrumentOpened   string
	InstrumentClosed   string
	InstrumentActive   string
	InstrumentUnknown  string
	CatalogOverlayUsed string
	CatalogOverlayBad  string
}

var (
	currentLang Language = LangEN
	mu          sync.RWMutex
	messages    *Messages
)

// English messages
var messagesEN = Messages{
	Starting:           "Starting TradeSim core...",
	ConfigLoaded:       "Config loaded (Port: %s)",
	UsingDBPath:        "Using DB path: %s",
	ShuttingDown:       "Shutting down gracefully...",
	ConfigLoadFailed:   "Failed to load config: %v",
	DBInitFailed:       "Failed to init database: %v",
	DBMigrationsFailed: "Failed to apply migrations: %v",
	SessionLoaded:      "Session %s restored (balance %.2f, wins %d)",
	SessionLoadFailed:  "Failed to load session: %v",
	APIServerError:     "API server error: %v",
	EngineStarted:      "Engine loop started",
	EngineStopped:      "Engine loop stopped",
	MetricsInit:        "System metrics initialized",

	BalanceInitialized:  "Balance initialized: %.2f",
	BalanceDebited:      "Balance debited: %.2f (balance: %.2f)",
	BalanceCredited:     "Balance credited: %.2f (balance: %.2f)",
	InsufficientBalance: "Insufficient balance: need %.2f, have %.2f",
	BalancePersistError: "Failed to persist balance: %v",

	FeedStarted:       "Price feed started for %s",
	FeedStopped:       "Price feed stopped for %s",
	MarketFetchFailed: "Market fetch failed for %s, falling back to synthetic: %v",
	SeriesSeeded:      "Series for %s seeded with %d candles from market data",
	SyntheticSeed:     "Series for %s seeded synthetically (%d candles)",
	BiasArmed:         "Walk bias armed for %s: %s",
	BiasCleared:       "Walk bias cleared for %s",

	TradeOpened:        "Trade opened: %s %s stake=%.2f entry=%.5f",
	TradeRejected:      "Trade rejected for %s: %v",
	TradeSettledWin:    "Trade %s WON: +%.2f (close %.5f vs entry %.5f)",
	TradeSettledLoss:   "Trade %s lost: -%.2f (close %.5f vs entry %.5f)",
	SettlementNoPrice:  "Cannot settle trade %s: no price for %s, dropping",
	HistoryWriteFailed: "Failed to persist history record: %v",

	SignalCreated:  "Signal created: %s %s %.0f%% of balance (%.2f)",
	SignalFollowed: "Signal %s followed",
	SignalIgnored:  "Signal %s ignored",
	SignalExpired:  "Signal %s expired unacted",
	SignalRejected: "Signal action rejected: %v",

	RankPromoted: "Rank up! %s attained at %d wins",

	InstrumentOpened:   "Instrument tab opened: %s",
	InstrumentClosed:   "Instrument tab closed: %s",
	InstrumentActive:   "Active instrument: %s",
	InstrumentUnknown:  "Unknown instrument: %s",
	CatalogOverlayUsed: "Instrument catalog overlay loaded from %s (%d entries)",
	CatalogOverlayBad:  "Ignoring instrument overlay %s: %v",
}

// Portuguese messages (the product UI speaks pt-BR)
var messagesPT = Messages{
	Starting:           "Iniciando o núcleo do TradeSim...",
	ConfigLoaded:       "Configuração carregada (Porta: %s)",
	UsingDBPath:        "Usando banco de dados em: %s",
	ShuttingDown:       "Encerrando graciosamente...",
	ConfigLoadFailed:   "Falha ao carregar configuração: %v",
	DBInitFailed:       "Falha ao iniciar banco de dados: %v",
	DBMigrationsFailed: "Falha ao aplicar migrações: %v",
	SessionLoaded:      "Sessão %s restaurada (saldo %.2f, vitórias %d)",
	SessionLoadFailed:  "Falha ao carregar sessão: %v",
	APIServerError:     "Erro no servidor API: %v",
	EngineStarted:      "Loop do motor iniciado",
	EngineStopped:      "Loop do motor encerrado",
	MetricsInit:        "Métricas do sistema inicializadas",

	BalanceInitialized:  "Saldo inicializado: %.2f",
	BalanceDebited:      "Saldo debitado: %.2f (saldo: %.2f)",
	BalanceCredited:     "Saldo creditado: %.2f (saldo: %.2f)",
	InsufficientBalance: "Saldo insuficiente: precisa %.2f, tem %.2f",
	BalancePersistError: "Falha ao persistir saldo: %v",

	FeedStarted:       "Feed de preços iniciado para %s",
	FeedStopped:       "Feed de preços encerrado para %s",
	MarketFetchFailed: "Busca de mercado falhou para %s, usando sintético: %v",
	SeriesSeeded:      "Série de %s populada com %d velas de dados reais",
	SyntheticSeed:     "Série de %s populada sinteticamente (%d velas)",
	BiasArmed:         "Viés da caminhada armado para %s: %s",
	BiasCleared:       "Viés da caminhada limpo para %s",

	TradeOpened:        "Operação aberta: %s %s valor=%.2f entrada=%.5f",
	TradeRejected:      "Operação rejeitada para %s: %v",
	TradeSettledWin:    "Operação %s GANHOU: +%.2f (fechamento %.5f vs entrada %.5f)",
	TradeSettledLoss:   "Operação %s perdeu: -%.2f (fechamento %.5f vs entrada %.5f)",
	SettlementNoPrice:  "Não foi possível liquidar %s: sem preço para %s, descartando",
	HistoryWriteFailed: "Falha ao persistir histórico: %v",

	SignalCreated:  "Sinal criado: %s %s %.0f%% da banca (%.2f)",
	SignalFollowed: "Sinal %s seguido",
	SignalIgnored:  "Sinal %s ignorado",
	SignalExpired:  "Sinal %s expirou sem ação",
	SignalRejected: "Ação de sinal rejeitada: %v",

	RankPromoted: "Subiu de rank! %s alcançado com %d vitórias",

	InstrumentOpened:   "Aba de ativo aberta: %s",
	InstrumentClosed:   "Aba de ativo fechada: %s",
	InstrumentActive:   "Ativo em foco: %s",
	InstrumentUnknown:  "Ativo desconhecido: %s",
	CatalogOverlayUsed: "Catálogo de ativos carregado de %s (%d entradas)",
	CatalogOverlayBad:  "Ignorando catálogo %s: %v",
}

func init() {
	messages = &messagesEN
}

// SetLanguage sets the current language
func SetLanguage(lang Language) {
	mu.Lock()
	defer mu.Unlock()

	currentLang = lang
	switch lang {
	case LangPT:
		messages = &messagesPT
	default:
		messages = &messagesEN
	}
}

// GetLanguage returns the current language
func GetLanguage() Language {
	mu.RLock()
	defer mu.RUnlock()
	return currentLang
}

// M returns the current messages
func M() *Messages {
	mu.RLock()
	defer mu.RUnlock()
	return messages
}

// Get returns specific message by key dynamically using reflection
func Get(key string) string {
	msg := M()
	v := reflect.ValueOf(msg).Elem()
	f := v.FieldByName(key)
	if f.IsValid() && f.Kind() == reflect.String {
		return f.String()
	}
	return key
}
