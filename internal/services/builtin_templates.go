// internal/services/builtin_templates.go
// 內建範本

package services

import "mail-merge/internal/models"

const welcomeBody = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f8f9fa;">
    <div style="background-color: white; padding: 30px; border-radius: 10px;">
        <h2 style="color: #2c3e50;">Welcome <span style="color: #e74c3c;">{Name}</span>!</h2>
        <p style="color: #495057; line-height: 1.6;">We're <strong>thrilled</strong> to have you join our community.</p>
        <div style="background-color: #d4edda; border-left: 4px solid #28a745; padding: 15px; margin: 20px 0;">
            <p style="margin: 0; color: #155724;"><strong>Your account is now active.</strong></p>
        </div>
        <p style="color: #495057; line-height: 1.6;">Start exploring the platform and the features we have prepared for you.</p>
        <p style="color: #6c757d; font-size: 14px; border-top: 1px solid #dee2e6; padding-top: 20px;">Best regards,<br><strong>The Team</strong></p>
    </div>
</div>`

const notificationBody = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f8f9fa;">
    <div style="background-color: white; padding: 25px; border-radius: 8px; border-left: 5px solid #ffc107;">
        <h3 style="color: #856404; margin-top: 0;">Important update for {Name}</h3>
        <p style="color: #495057; line-height: 1.6;">We have an <em>important update</em> to share with you regarding your recent activity.</p>
        <div style="background-color: #fff3cd; border: 1px solid #ffeaa7; border-radius: 5px; padding: 15px; margin: 15px 0;">
            <p style="margin: 0; color: #856404;"><strong>Action required:</strong> please review the changes and update your settings.</p>
        </div>
        <p style="color: #495057; line-height: 1.6;">If you have any questions, contact our support team.</p>
        <p style="color: #6c757d; font-size: 14px;">Best regards,<br><strong>The Team</strong></p>
    </div>
</div>`

const certificateBody = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f0f0f0;">
    <div style="background-color: white; padding: 30px; border-radius: 10px;">
        <p>Dear <strong>{Name}</strong>,</p>
        <p>Congratulations on your participation in our recent event. Your certificate is attached to this email.</p>
        <p>Feel free to share this accomplishment with your peers, colleagues, and networks.</p>
        <p>If you have any questions, please reach out.</p>
        <p>Best regards,<br><strong>The Team</strong></p>
    </div>
</div>`

// Builtins 回傳內建範本 (welcome / notification / certificate)
func Builtins() map[string]models.Template {
	return map[string]models.Template{
		"welcome": {
			Subject: "Welcome to our platform!",
			Body:    welcomeBody,
		},
		"notification": {
			Subject: "Important update for {Name}",
			Body:    notificationBody,
		},
		"certificate": {
			Subject: "Your certificate, {Name}",
			Body:    certificateBody,
		},
	}
}
