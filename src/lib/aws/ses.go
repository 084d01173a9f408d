package aws

import (
	"context"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

var sesClient *ses.Client

func GetSESClient() *ses.Client {
	if sesClient != nil {
		return sesClient
	}
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Printf("Could not load default config: %s\n", err.Error())
		return nil
	}
	sesClient = ses.NewFromConfig(cfg)
	return sesClient
}

// BuildEmailInput composes the SES request for one queued mail message.
func BuildEmailInput(from string, to []string, subject string, body string, html bool) *ses.SendEmailInput {
	content := &types.Content{
		Data:    aws.String(body),
		Charset: aws.String("UTF-8"),
	}
	sesBody := &types.Body{}
	if html {
		sesBody.Html = content
	} else {
		sesBody.Text = content
	}
	return &ses.SendEmailInput{
		Source: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: to,
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: sesBody,
		},
	}
}

func SESSendMessage(input *ses.SendEmailInput) (*string, error) {
	c := GetSESClient()
	out, err := c.SendEmail(context.TODO(), input)
	if err != nil {
		log.Printf("Error sending email: %s\n", err.Error())
		return nil, err
	}
	log.Printf("Sent email with id: %s\n", *out.MessageId)
	return out.MessageId, nil
}
