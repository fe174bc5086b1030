package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	APIKey    string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	u := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, u, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-API-Key", c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func main() {
	var (
		baseURL = envOr("ATDOCK_ADMIN_URL", "http://localhost:8080")
		apiKey  = envOr("ATDOCK_ADMIN_KEY", "")
		out     = envOr("ATDOCK_OUT", "text")
		timeout = 30 * time.Second
	)

	root := &cobra.Command{
		Use:   "atdockctl",
		Short: "CLI de operación para atdock (solo /v1/admin)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if apiKey == "" {
				return fmt.Errorf("falta API key (flag --api-key o env ATDOCK_ADMIN_KEY)")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "URL base del servicio (env ATDOCK_ADMIN_URL)")
	root.PersistentFlags().StringVar(&apiKey, "api-key", apiKey, "API key del Admin API (env ATDOCK_ADMIN_KEY)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	cl := &client{BaseURL: baseURL, APIKey: apiKey, OutFormat: out, HTTP: &http.Client{Timeout: timeout}}

	// users get
	getUserCmd := &cobra.Command{
		Use:   "get <did>",
		Short: "Buscar un usuario por DID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/v1/admin/users/"+url.PathEscape(args[0]), nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("get fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}

	// users delete
	deleteUserCmd := &cobra.Command{
		Use:   "delete <did>",
		Short: "Borrar un usuario por DID (idempotente)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("DELETE", "/v1/admin/users/"+url.PathEscape(args[0]), nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("delete fallo: status=%d body=%s", status, string(body))
			}
			if cl.OutFormat == "text" {
				fmt.Println("ok")
				return nil
			}
			cl.print(status, []byte(`{"ok":true}`))
			return nil
		},
	}

	// ping: probe de readiness, sin API key
	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Verificar que el servicio responde",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/readyz", nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("ping fallo: status=%d body=%s", status, string(body))
			}
			if cl.OutFormat == "text" {
				fmt.Println("ok")
				return nil
			}
			cl.print(status, body)
			return nil
		},
	}

	// users disconnect
	disconnectCmd := &cobra.Command{
		Use:   "disconnect <did>",
		Short: "Revocar la conexión GitHub de un usuario (idempotente)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("DELETE", "/v1/admin/users/"+url.PathEscape(args[0])+"/connection", nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("disconnect fallo: status=%d body=%s", status, string(body))
			}
			if cl.OutFormat == "text" {
				fmt.Println("ok")
				return nil
			}
			cl.print(status, []byte(`{"ok":true}`))
			return nil
		},
	}

	usersCmd := &cobra.Command{Use: "users", Short: "Operaciones sobre usuarios"}
	usersCmd.AddCommand(getUserCmd)
	usersCmd.AddCommand(deleteUserCmd)
	usersCmd.AddCommand(disconnectCmd)

	root.AddCommand(pingCmd)
	root.AddCommand(usersCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
