package banner

import (
	"fmt"

	"flux/pkg/config"
)

const banner = `
███████╗██╗     ██╗   ██╗██╗  ██╗
██╔════╝██║     ██║   ██║╚██╗██╔╝
█████╗  ██║     ██║   ██║ ╚███╔╝
██╔══╝  ██║     ██║   ██║ ██╔██╗
██║     ███████╗╚██████╔╝██╔╝ ██╗
╚═╝     ╚══════╝ ╚═════╝ ╚═╝  ╚═╝
`

// Print prints the startup banner with the effective config summary and a
// short endpoint listing.
func Print(eff config.EffectiveConfigResult, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:     %s\n", eff.Addr)
	fmt.Printf("Data Path:  %s\n", eff.DBPath)
	if version != "" {
		fmt.Printf("Version:    %s\n", version)
	}
	if eff.Source != "" {
		fmt.Printf("Config sources: %s\n", eff.Source)
	}
	configured := "no (fallback replies)"
	if eff.Config != nil && eff.Config.Upstream.APIKey != "" {
		configured = "yes"
	}
	fmt.Printf("Upstream credential: %s\n", configured)
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /v1/chat - Run a multi-agent turn (JSON: message, conversation)")
	fmt.Println("POST /v1/conversations - Create a conversation (JSON: title, participant)")
	fmt.Println("GET  /v1/conversations?q=<query> - List or search conversations")
	fmt.Println("GET  /v1/conversations/{id}/export?format=json|markdown - Export")
	fmt.Println("GET  /v1/personas - List the agent team")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -X POST 'http://localhost%s/v1/chat' -d '{\"message\": \"Hey team, status update?\"}'\n", eff.Addr)
	fmt.Printf("curl 'http://localhost%s/v1/conversations?q=sprint'\n", eff.Addr)
}
