package auth

// Repository provides access to the user credential catalog.
type Repository interface {
	FindSecretKey(accessKey string) (secretKey string, err error)
}
