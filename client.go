package main

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
)

func NewHTTPClient() *resty.Client {
	return resty.New().SetTimeout(10 * time.Second)
}

// CheckKeepAlive fetches the public keep-alive url the way an external
// uptime pinger would and returns the HTTP status line.
func CheckKeepAlive(ctx context.Context, client *resty.Client, url string) (string, error) {
	resp, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", err
	}
	return resp.Status(), nil
}
