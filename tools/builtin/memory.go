package builtin

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"jarvis/tools"
)

func memoryTools(d Deps) []tools.Definition {
	store := d.Memory
	return []tools.Definition{
		{
			Name:        "save_task_summary_to_memory",
			Description: "Saves a summary of a completed task to long-term memory.",
			Category:    categorySystemInfo,
			Schema: tools.NewSchema(
				tools.Required("task_summary", tools.TypeString, "One-sentence summary of the task."),
				tools.Field{Name: "tools_used", Type: tools.TypeArray, Items: tools.TypeString, Required: true, Description: "Names of the tools used."},
				tools.Required("final_result", tools.TypeString, "The final answer given to the user."),
			),
			Func: func(ctx context.Context, args tools.Args) (any, error) {
				if _, err := store.Add(ctx, args.String("task_summary"), args.Strings("tools_used"), args.String("final_result")); err != nil {
					return nil, err
				}
				return "Task summary has been committed to long-term memory.", nil
			},
		},
		{
			Name:        "save_user_preference",
			Description: "Saves a user preference for future reference, e.g. 'preferred_summary_style' = 'bullet_points'.",
			Category:    categorySystemInfo,
			Schema: tools.NewSchema(
				tools.Required("preference_key", tools.TypeString, "Preference name."),
				tools.Required("preference_value", tools.TypeString, "Preference value."),
			),
			Func: func(ctx context.Context, args tools.Args) (any, error) {
				key := args.String("preference_key")
				if err := store.SavePreference(ctx, key, args.String("preference_value")); err != nil {
					return nil, err
				}
				return fmt.Sprintf("Preference '%s' has been saved.", key), nil
			},
		},
		{
			Name:        "get_user_preferences",
			Description: "Retrieves all saved user preferences.",
			Category:    categorySystemInfo,
			Schema:      tools.NewSchema(),
			Func: func(ctx context.Context, _ tools.Args) (any, error) {
				prefs, err := store.Preferences(ctx)
				if err != nil {
					return nil, err
				}
				return FormatPreferences(prefs), nil
			},
		},
	}
}

// FormatPreferences renders preferences sorted by key.
func FormatPreferences(prefs map[string]string) string {
	if len(prefs) == 0 {
		return "No user preferences have been saved yet."
	}
	keys := make([]string, 0, len(prefs))
	for k := range prefs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString("Current User Preferences:")
	for _, k := range keys {
		fmt.Fprintf(&b, "\n- %s: %s", k, prefs[k])
	}
	return b.String()
}
