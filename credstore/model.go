package credstore

// Schema versions understood by the record codec. Version 1 records predate
// refresh tokens and decode with an empty RefreshToken.
const (
	RecordVersionCurrent byte = 2
	recordVersionV1      byte = 1
)

// Keys under which the two persisted records live in a [Medium]. The names
// are fixed identifiers carried over from the first release; changing them
// orphans existing records.
const (
	CredentialKey = "auth_data"
	ProfileKey    = "auth_user"
)

// TokenPair is the current credential: a short-lived access token plus an
// optional longer-lived refresh token. AccessToken is non-empty for any pair
// accepted by [Store.Save]; IssuedAt is a Unix timestamp and never decreases
// across successive saves.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	IssuedAt     int64
}

// StoredCredential is the decoded at-rest form of a [TokenPair]: the pair
// itself plus the write timestamp used for staleness eviction and the schema
// version the record was encoded with.
type StoredCredential struct {
	Pair          TokenPair
	StoredAt      int64
	SchemaVersion byte
}
