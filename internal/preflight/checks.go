package preflight

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"cratedig/internal/transport/prowlarr"
	"cratedig/internal/transport/slskd"
)

const serviceTimeout = 5 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSlskd verifies the slskd API accepts the key and reports whether the
// daemon is logged in to the Soulseek network.
func CheckSlskd(ctx context.Context, baseURL, apiKey, downloadDir string) Result {
	const name = "slskd"
	client, err := slskd.New(slskd.Options{URL: baseURL, APIKey: apiKey, DownloadDir: downloadDir})
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	checkCtx, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()
	connected, err := client.Connected(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("unreachable (%v)", err)}
	}
	if !connected {
		return Result{Name: name, Detail: "reachable but not logged in to Soulseek"}
	}
	return Result{Name: name, Passed: true, Detail: "connected"}
}

// CheckProwlarr verifies Prowlarr connectivity and authentication.
func CheckProwlarr(ctx context.Context, baseURL, apiKey string) Result {
	const name = "Prowlarr"
	client, err := prowlarr.New(baseURL, apiKey)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	checkCtx, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()
	if err := client.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("unreachable (%v)", err)}
	}
	return Result{Name: name, Passed: true, Detail: "reachable"}
}
