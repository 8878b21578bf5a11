package webutil

const (
	// Header Keys
	HeaderContentType = "Content-Type"
	HeaderToken       = "Token" // bearer header carrying a session token id

	// Content Types
	ContentTypeJSONUTF8      = "application/json; charset=utf-8"
	ContentTypeTextPlainUTF8 = "text/plain; charset=utf-8"
)
