// Package storage issues presigned object storage URLs for file upload
// and download. The gateway never proxies file bytes itself; clients
// transfer directly against the returned URLs.
package storage
