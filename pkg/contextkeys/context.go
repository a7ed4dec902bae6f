package contextkeys

type ContextKey string

const (
	// DBContextKey - ключ, под которым middleware кладет *gorm.DB
	// (пул соединений или транзакцию в тестах) в gin.Context.
	DBContextKey ContextKey = "db"
)
