package contextkeys

type contextKey string

// DBContextKey holds the request-scoped *gorm.DB.
const DBContextKey = contextKey("db")

// Gin context keys (gin.Context.Set takes plain strings).
const (
	UserIDKey    = "userID"
	RequestIDKey = "requestID"
)
