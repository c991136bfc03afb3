package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	os.Exit(getAndPrint(adminURL(*baseURL, "/admin/v1/state", nil)))
}

func commandsCmd(args []string) {
	fs := flag.NewFlagSet("commands", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	companyID := fs.Int("company", -1, "company filter (optional)")
	failedOnly := fs.Bool("failed", false, "only failed commands")
	limit := fs.Int("limit", 0, "result limit (optional)")
	_ = fs.Parse(args)

	v := url.Values{}
	if *companyID >= 0 {
		v.Set("company", strconv.Itoa(*companyID))
	}
	if *failedOnly {
		v.Set("failed", "1")
	}
	if *limit > 0 {
		v.Set("limit", strconv.Itoa(*limit))
	}
	os.Exit(getAndPrint(adminURL(*baseURL, "/admin/v1/commands", v)))
}

func adminURL(base, path string, q url.Values) string {
	u := strings.TrimRight(strings.TrimSpace(base), "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func getAndPrint(u string) int {
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		return 1
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Print(string(b))
	if resp.StatusCode/100 != 2 {
		return 1
	}
	return 0
}
