// Package mock is used to generate mock files for testing.
package mock

//go:generate mockgen -source ../websession_iface.go -destination mock_websession/mock_websession_iface.go
//go:generate mockgen -source ../credential/credential.go -destination mock_credential/mock_credential.go
//go:generate mockgen -source ../featureflag/featureflag_iface.go -destination mock_featureflag/mock_featureflag_iface.go
