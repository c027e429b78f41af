package personas

import "strings"

// rule maps any of its keywords (case-insensitive substring match) to a
// persona key. Rules are evaluated in order; the first match wins.
type rule struct {
	keywords []string
	persona  string
}

// teamKeywords invoke the whole team; they are checked before the
// per-persona rules so "Hey team, review the architecture" goes to the
// coordinator rather than the architect.
var teamKeywords = []string{"team", "everyone", "all"}

var rules = []rule{
	{[]string{"messi", "requirement"}, "requirements_analyst"},
	{[]string{"ronaldo", "architect"}, "software_architect"},
	{[]string{"neymar", "developer", "code"}, "developer"},
	{[]string{"mbappe", "mbappé", "qa", "test"}, "qa_tester"},
	{[]string{"benzema", "devops", "deploy"}, "devops_engineer"},
	{[]string{"modric", "project manager", "planning"}, "project_manager"},
	{[]string{"ramos", "security"}, "security_expert"},
}

// adjacency maps each persona to the (at most two) personas most likely to
// add useful follow-ups on its topics.
var adjacency = map[string][]string{
	"requirements_analyst": {"software_architect", "project_manager"},
	"software_architect":   {"developer", "security_expert"},
	"developer":            {"qa_tester", "software_architect"},
	"qa_tester":            {"developer", "devops_engineer"},
	"devops_engineer":      {"security_expert", "developer"},
	"project_manager":      {"requirements_analyst", "developer"},
	"security_expert":      {"devops_engineer", "software_architect"},
}

// broadcastList is the fixed collaborator set for team calls, in listing
// order, coordinator excluded (it already leads the turn).
var broadcastList = []string{
	"requirements_analyst",
	"software_architect",
	"developer",
	"qa_tester",
	"devops_engineer",
	"security_expert",
}

// DetectPrimary selects the persona that leads the response to message.
// It is total: every input maps to exactly one persona. teamCall reports
// whether the message invoked the whole team.
func DetectPrimary(message string) (key string, teamCall bool) {
	lower := strings.ToLower(message)
	for _, kw := range teamKeywords {
		if strings.Contains(lower, kw) {
			return coordinatorKey, true
		}
	}
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.persona, false
			}
		}
	}
	return coordinatorKey, false
}

// Collaborators returns the personas invited to follow up after primary.
// Team calls override the adjacency table with the fixed broadcast list.
func Collaborators(primary string, teamCall bool) []string {
	if teamCall {
		out := make([]string, 0, len(broadcastList))
		for _, k := range broadcastList {
			if k != primary {
				out = append(out, k)
			}
		}
		return out
	}
	return append([]string(nil), adjacency[primary]...)
}
