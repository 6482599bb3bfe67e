package agent

// User-facing outcomes of an episode that ended without a final answer.
const (
	MsgTurnBudgetExhausted = "The agent could not complete the task within the allowed number of steps. Please try rephrasing your goal."
	MsgCouldNotDecide      = "The agent could not decide on a next step. Please try rephrasing your goal."
	MsgFormatFailure       = "The agent failed to format its response correctly. This may be an internal issue."
	MsgStuck               = "The agent got stuck and could not recover. Please try rephrasing your goal."
	MsgRepeatedAPIErrors   = "The agent encountered repeated API errors. Please try again later."
	MsgRateLimited         = "The AI service is rate limiting requests and did not recover in time. Please try again later."
	msgCriticalPrefix      = "Sorry, a critical error occurred while communicating with the AI: "
)

// Feedback written into the scratchpad for the model to correct itself.
const (
	feedbackEmpty = "SYSTEM_FEEDBACK: Your response was empty. This is a critical error. You MUST provide a JSON object with a thought and a tool call, or a 'Final Answer:'. Do not respond with empty content again."

	feedbackServerError = "SYSTEM_FEEDBACK: The API call failed with a server error. This may have been a temporary issue. Please re-evaluate the plan and try again."

	feedbackMissingPrefix = "SYSTEM_FEEDBACK: Your thought seems to contain the final answer, but you did not use the required 'Final Answer:' prefix. You MUST either use a tool or format your response as 'Final Answer: [your response]'."

	feedbackNoAction = "SYSTEM_FEEDBACK: Your response was valid, but you did not propose any action. Every turn must result in a tool call. If you believe the task is complete, you must use the 'Final Answer:' format. Otherwise, you must choose a tool to get closer to the goal."

	feedbackParseFormat = "SYSTEM_FEEDBACK: Your last response could not be parsed. The error was: '%s'. You MUST follow the specified JSON format exactly, including the '```json' markers. Do not add any text outside the JSON block."

	feedbackDeclined = "SYSTEM_FEEDBACK: User cancelled the action plan. Please propose a new plan."

	feedbackStopped = "SYSTEM_FEEDBACK: The plan was not executed because its confidence (%.2f) is too low for the tools it uses. Gather more information first or propose a safer, more confident plan."

	feedbackLoop = "SYSTEM_FEEDBACK: You are looping the same tool and response. You have called the same tool with the same arguments and received the same response multiple times. Please correct yourself and try a different approach."
)

const confirmTitle = "Confirm Action Plan"
