package prompt

import (
	"github.com/sashabaranov/go-openai"
)

// DefaultTemperature keeps nutrition estimates stable between runs.
const DefaultTemperature float32 = 0.1

// MealInstruction tells the model which JSON object to produce for a photo.
const MealInstruction = `Analyze this image. First, determine if it is a food item suitable for consumption.
Respond with one JSON object only (no markdown, no commentary) with these keys:
- is_food (boolean): true when the photo shows food or drink suitable for consumption.
- name (string): the dish or item name.
- health_score (integer 0-100): overall healthiness; set to 0 if not food.
- calories (integer >= 0): estimated kcal for the visible portion; set to 0 if not food.
- protein (integer grams >= 0), carbs (integer grams >= 0), fats (integer grams >= 0): set to 0 if not food.
- ingredients (array of strings): visible or likely ingredients; empty array if not food.
- health_summary (string): two or three sentences on the nutritional profile.
- short_report (string): a very concise 1-sentence summary of the food's health impact, or a witty remark if it's not food.`

// ImageDataURI wraps a base64 JPEG payload as an inline image URL.
func ImageDataURI(imageBase64 string) string {
	return "data:image/jpeg;base64," + imageBase64
}

// BuildMealRequest composes the chat completion request for one photo.
// It performs no I/O.
func BuildMealRequest(model string, temperature float32, imageBase64 string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: MealInstruction},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    ImageDataURI(imageBase64),
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: temperature,
	}
}
