package canvas

// Schema is the JSON schema of Canvas.
const Schema = `{
  "type": "object",
  "properties": {
    "general_information": {
      "type": "object",
      "properties": {
        "analysis": {
          "type": "string",
          "description": "Analysis of the business idea regarding which values should be chosen in the business model canvas section."
        },
        "business_model_type": {
          "type": "array",
          "items": {
            "type": "string",
            "enum": [
              "B2B",
              "B2C",
              "B2B2C",
              "Hybrid",
              "D2C",
              "B2A"
            ]
          }
        },
        "industry": {
          "type": "string",
          "description": "The primary industry or sector (e.g., SaaS, E-commerce)."
        }
      },
      "required": [
        "analysis",
        "business_model_type",
        "industry"
      ]
    },
    "target_segments": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "customer_type": {
            "type": "array",
            "items": {
              "type": "string",
              "enum": [
                "B2B",
                "B2C",
                "B2B2C",
                "Hybrid",
                "D2C",
                "B2A"
              ]
            }
          },
          "demographics": {
            "type": [
              "object",
              "null"
            ],
            "properties": {
              "age_range": {
                "type": "string",
                "enum": [
                  "Children",
                  "Teenagers",
                  "Young Adults",
                  "Adults",
                  "Boomers",
                  "Seniors"
                ]
              },
              "income_level": {
                "type": [
                  "string",
                  "null"
                ],
                "description": "Income level of the target audience (e.g., Low, Middle, High)."
              },
              "lifestyle": {
                "type": [
                  "string",
                  "null"
                ],
                "description": "Lifestyle characteristics of the audience (e.g., Urban, Tech-Savvy)."
              }
            },
            "required": [
              "age_range"
            ]
          },
          "purchasing_behavior": {
            "type": [
              "string",
              "null"
            ],
            "enum": [
              "Impulse",
              "Planned",
              "Habitual",
              "Complex",
              null
            ]
          },
          "geographic_segmentation": {
            "type": [
              "string",
              "null"
            ]
          }
        },
        "required": [
          "customer_type"
        ]
      }
    },
    "value_proposition": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "usp": {
            "type": "string",
            "description": "Unique Selling Proposition."
          },
          "customer_problem": {
            "type": "string",
            "description": "The problem the product or service solves."
          },
          "job_to_be_done": {
            "type": [
              "string",
              "null"
            ]
          },
          "customer_pains": {
            "type": "array",
            "items": {
              "type": "string"
            }
          },
          "customer_gains": {
            "type": "array",
            "items": {
              "type": "string"
            }
          }
        },
        "required": [
          "usp",
          "customer_problem",
          "customer_pains",
          "customer_gains"
        ]
      }
    },
    "offer_portfolio": {
      "type": "object",
      "properties": {
        "main_offer": {
          "type": "array",
          "items": {
            "type": "string"
          }
        },
        "additional_offers": {
          "type": [
            "array",
            "null"
          ],
          "items": {
            "type": "string"
          }
        }
      },
      "required": [
        "main_offer"
      ]
    },
    "revenue_model": {
      "type": "object",
      "properties": {
        "revenue_model": {
          "type": "array",
          "items": {
            "type": "string",
            "enum": [
              "Transaction Model",
              "Subscription Model",
              "Freemium Model",
              "Advertising Model",
              "Licensing",
              "Marketplace Model",
              "Data Monetization",
              "Platform Fees"
            ]
          }
        },
        "pricing_strategy": {
          "type": [
            "string",
            "null"
          ],
          "enum": [
            "Value-Based Pricing",
            "Cost-Plus Pricing",
            "Dynamic Pricing",
            "Premium Pricing",
            "Penetration Pricing",
            null
          ]
        }
      },
      "required": [
        "revenue_model"
      ]
    },
    "presence": {
      "type": "object",
      "properties": {
        "presence_form": {
          "type": "string",
          "enum": [
            "Physical",
            "Digital",
            "Hybrid"
          ]
        },
        "service_area": {
          "type": "string",
          "enum": [
            "Local",
            "Regional",
            "National",
            "International"
          ]
        }
      },
      "required": [
        "presence_form",
        "service_area"
      ]
    },
    "strategy": {
      "type": "object",
      "properties": {
        "growth_strategy": {
          "type": "string",
          "enum": [
            "Market Penetration",
            "Market Development",
            "Product Development",
            "Diversification"
          ]
        },
        "competitive_strategy": {
          "type": "string",
          "enum": [
            "Cost Leadership",
            "Differentiation",
            "Focus"
          ]
        }
      },
      "required": [
        "growth_strategy",
        "competitive_strategy"
      ]
    },
    "marketing": {
      "type": "object",
      "properties": {
        "channels": {
          "type": "array",
          "items": {
            "type": "string",
            "enum": [
              "Social Media",
              "SEO",
              "SEA",
              "Email Marketing",
              "Influencer Marketing",
              "Others"
            ]
          }
        },
        "branding_strategy": {
          "type": [
            "string",
            "null"
          ],
          "enum": [
            "Premium",
            "Price-Oriented",
            "Mass Market",
            "Niche",
            null
          ]
        }
      },
      "required": [
        "channels"
      ]
    },
    "resources": {
      "type": "object",
      "properties": {
        "key_resources": {
          "type": "array",
          "items": {
            "type": "string",
            "enum": [
              "Technology",
              "Human Resources",
              "Capital",
              "Data",
              "Brand Name",
              "Others"
            ]
          }
        },
        "key_partners": {
          "type": [
            "array",
            "null"
          ],
          "items": {
            "type": "string"
          }
        }
      },
      "required": [
        "key_resources"
      ]
    },
    "processes": {
      "type": "object",
      "properties": {
        "main_activities": {
          "type": "array",
          "items": {
            "type": "string",
            "enum": [
              "Production",
              "Development",
              "Marketing",
              "Logistics",
              "Service",
              "Customer Support",
              "Others"
            ]
          }
        },
        "automation_potential": {
          "type": [
            "boolean",
            "null"
          ]
        }
      },
      "required": [
        "main_activities"
      ]
    }
  },
  "required": [
    "general_information",
    "target_segments",
    "value_proposition",
    "offer_portfolio",
    "revenue_model",
    "presence",
    "strategy",
    "marketing",
    "resources",
    "processes"
  ]
}`
